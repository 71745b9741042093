package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/server"
	"github.com/chrisvdg/tourneyfilter/tournament"
)

func main() {
	listAddr := pflag.StringP("listenaddr", "l", ":8080", "http listen address")
	tlsListAddr := pflag.StringP("tlsaddr", "t", ":8443", "https listen address")
	tlsKey := pflag.StringP("tlskey", "k", "", "TLS private key file path")
	tlsCert := pflag.StringP("tlscert", "c", "", "TLS certificate file path")
	tlsOnly := pflag.BoolP("tlsonly", "s", false, "Only serve TLS")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")
	db := pflag.StringP("db", "d", "tournaments.db", "SQLite database file path")
	seed := pflag.String("seed", "", "JSON file with tournaments to load on start")
	pageSize := pflag.Int("pagesize", tournament.DefaultPageSize, "Tournaments per result page")
	cacheSize := pflag.Int("cachesize", cache.DefaultSize, "Maximum number of cached result sets")
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	c := &server.Config{
		ListenAddr:    *listAddr,
		TLSListenAddr: *tlsListAddr,
		TLSOnly:       *tlsOnly,
		TLS: &server.TLSConfig{
			KeyFile:  *tlsKey,
			CertFile: *tlsCert,
		},
		Verbose:      *verbose,
		DatabasePath: *db,
		SeedFile:     *seed,
		PageSize:     *pageSize,
		CacheSize:    *cacheSize,
	}

	s, err := server.New(c)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	s.ListenAndServe()
}
