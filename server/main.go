package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/akamensky/argparse"

	"netstash/constants"
	server "netstash/server/controller"
)

func main() {
	args := argparse.NewParser("server", constants.Title)

	bind := args.String("l", "listen", &argparse.Options{Required: false, Help: "Listen on address",
		Default: "0.0.0.0"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Listening port",
		Default: constants.DEFAULT_PORT})
	path := args.String("r", "root", &argparse.Options{Required: true, Help: "Root path for storing files"})
	secret := args.String("k", "secret", &argparse.Options{Required: false,
		Help: "Shared secret for client authentication (or " + constants.SECRET_ENV + " env)"})
	index := args.String("d", "index", &argparse.Options{Required: false, Help: "Metadata index filename inside the root",
		Default: constants.INDEX_DB_NAME})
	compress := args.Flag("z", "compress", &argparse.Options{Required: false, Help: "Compress stored files on disk with LZ4"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	key := *secret
	if key == "" {
		key = os.Getenv(constants.SECRET_ENV)
	}
	if key == "" {
		fmt.Println("No shared secret given. Use --secret or " + constants.SECRET_ENV)
		os.Exit(1)
	}

	bindTo := *bind + ":" + strconv.Itoa(*port)

	server.StartListening(key, *path, *index, bindTo, *compress)
}
