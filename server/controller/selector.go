package server

import (
	"context"
	"fmt"
	"net"
	"os"

	"netstash/networking"
	"netstash/storage"
)

// Server accepts connections and hands each one to its own session handler
type Server struct {
	token [32]byte
	store *storage.Storage
}

// StartListening opens the storage root and serves the bound address until
// the process exits
func StartListening(secret, root, indexName, addr string, compress bool) {
	store, err := storage.New(root, indexName, compress)
	if err != nil {
		fmt.Println("Invalid storage root -", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	fmt.Println("Storage initialized at: " + root)

	if _, err = net.ResolveTCPAddr("tcp", addr); err != nil {
		fmt.Println("Invalid listen address -", err.Error())
		os.Exit(1)
	}

	lc := new(net.ListenConfig)
	l, err := lc.Listen(context.Background(), "tcp", addr)

	if err != nil {
		fmt.Println("Could not bind listening socket on " + addr)
		os.Exit(1)
	}

	defer l.Close()

	fmt.Println("Listening on " + addr)

	srv := &Server{
		token: networking.DeriveToken(secret),
		store: store,
	}
	srv.Serve(l)
}

// Serve runs the accept loop. Each connection gets its own goroutine so
// sessions never block on each other.
func (s *Server) Serve(l net.Listener) {
	for {
		conn, err := l.Accept()

		if err != nil {
			fmt.Println("Failed to establish incoming connection")
			return
		}

		// Set TCP_NODELAY to always immediately send.
		conn.(*net.TCPConn).SetNoDelay(true)

		fmt.Println("New connection from: " + conn.RemoteAddr().String())

		h := newHandler(s.store, s.token)
		go h.serve(conn)
	}
}
