package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/akamensky/argparse"

	"netstash/client/comms"
	"netstash/constants"
)

func main() {
	args := argparse.NewParser("client", constants.Title)

	op := args.Selector("o", "operation", []string{"probe", "upload", "download", "list", "delete"},
		&argparse.Options{Required: true, Help: "Operation to perform"})
	host := args.String("a", "address", &argparse.Options{Required: false, Help: "Server address",
		Default: "127.0.0.1"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Server port",
		Default: constants.DEFAULT_PORT})
	secret := args.String("k", "secret", &argparse.Options{Required: false,
		Help: "Shared secret for authentication (or " + constants.SECRET_ENV + " env)"})
	file := args.String("f", "file", &argparse.Options{Required: false, Help: "Local file path"})
	remote := args.String("n", "name", &argparse.Options{Required: false, Help: "Remote filename (defaults to local basename)"})
	legacy := args.Flag("s", "single", &argparse.Options{Required: false, Help: "Use single message store/retrieve instead of chunking"})
	dscp := args.Int("q", "dscp", &argparse.Options{Required: false, Help: "DSCP value for QoS",
		Default: constants.DEFAULT_DSCP})

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

	address := *host + ":" + strconv.Itoa(*port)

	client, err := comms.Dial(address, key, *dscp)
	if err != nil {
		fmt.Println("Could not connect to " + address + " - " + err.Error())
		os.Exit(2)
	}
	defer client.Close()

	switch *op {
	case "probe":
		if err := client.Probe(); err != nil {
			fmt.Println("Authentication failed -", err.Error())
			os.Exit(3)
		}
		fmt.Println("Authentication OK")
	case "upload":
		runUpload(client, *file, *remote, *legacy)
	case "download":
		runDownload(client, *file, *remote, *legacy)
	case "list":
		runList(client)
	case "delete":
		name := *remote
		if name == "" {
			name = filepath.Base(*file)
		}
		if err := client.Delete(name); err != nil {
			fmt.Println("Delete failed -", err.Error())
			os.Exit(3)
		}
		fmt.Println("Deleted " + name)
	}
}

// runUpload reads a local file and stores it remotely
func runUpload(client *comms.Client, file, remote string, legacy bool) {
	if file == "" {
		fmt.Println("Upload requires --file")
		os.Exit(1)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Println("Could not read " + file + " - " + err.Error())
		os.Exit(1)
	}

	name := remote
	if name == "" {
		name = filepath.Base(file)
	}

	if legacy {
		err = client.Store(name, data)
	} else {
		err = client.Upload(name, data, true)
	}

	if err != nil {
		fmt.Println("Upload failed -", err.Error())
		os.Exit(3)
	}

	fmt.Printf("Stored %s (%d bytes)\n", name, len(data))
}

// runDownload fetches a remote file and writes it locally
func runDownload(client *comms.Client, file, remote string, legacy bool) {
	name := remote
	if name == "" && file != "" {
		name = filepath.Base(file)
	}
	if name == "" {
		fmt.Println("Download requires --name or --file")
		os.Exit(1)
	}

	target := file
	if target == "" {
		target = name
	}

	var data []byte
	var err error
	if legacy {
		data, err = client.Retrieve(name)
	} else {
		data, err = client.Download(name, true)
	}

	if err != nil {
		fmt.Println("Download failed -", err.Error())
		os.Exit(3)
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		fmt.Println("Could not write " + target + " - " + err.Error())
		os.Exit(1)
	}

	fmt.Printf("Retrieved %s (%d bytes)\n", target, len(data))
}

// runList prints the remote file table
func runList(client *comms.Client) {
	files, err := client.List()
	if err != nil {
		fmt.Println("List failed -", err.Error())
		os.Exit(3)
	}

	if len(files) == 0 {
		fmt.Println("No files stored")
		return
	}

	for _, f := range files {
		modified := time.Unix(f.Modified, 0).Format("2006-01-02 15:04:05")
		fmt.Printf("%-32s %12d  %s  %s\n", f.Filename, f.Size, modified,
			hex.EncodeToString(f.Checksum[:])[:16])
	}
}
