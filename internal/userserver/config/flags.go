package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g., ":8002")
//	-m string   MongoDB URI
//	-n string   MongoDB database name
//	-b string   S3 bucket for avatars
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-n", "-b", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "mongodb uri")
	fs.StringVar(&config.DatabaseName, "n", config.DatabaseName, "mongodb database name")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "s3 bucket for avatars")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
