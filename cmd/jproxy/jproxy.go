// Program jproxy is a reverse proxy that accepts netstring-framed client
// connections and relays their frames verbatim to a single netstring-framed
// backend address, one backend connection per client. It does not parse or
// interpret JSON-RPC content; it forwards whole frames, rewriting nothing.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/txrpc/jrpc2/channel"
)

var (
	listenAddr  = flag.String("address", "", "Proxy listener address")
	backendAddr = flag.String("backend", "", "Backend server address")
	doVerbose   = flag.Bool("v", false, "Enable verbose logging")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: %s -address <addr> -backend <addr>

Listen on -address for netstring-framed client connections and relay each
one's frames verbatim to the -backend address, opening one backend
connection per client. The proxy does not parse JSON-RPC content; it simply
forwards whole netstring frames in both directions.

Options:
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	if *listenAddr == "" || *backendAddr == "" {
		log.Fatal("You must provide both -address and -backend")
	}

	lst, err := net.Listen(netKind(*listenAddr), *listenAddr)
	if err != nil {
		log.Fatalf("Listen: %v", err)
	}
	defer lst.Close()
	log.Printf("Proxying %s -> %s", *listenAddr, *backendAddr)

	for {
		conn, err := lst.Accept()
		if err != nil {
			log.Fatalf("Accept: %v", err)
		}
		go handle(conn)
	}
}

func netKind(addr string) string {
	if strings.Contains(addr, ":") {
		return "tcp"
	}
	return "unix"
}

// handle relays netstring frames between a single client connection and a
// freshly dialed backend connection, in both directions, until either side
// closes or errors.
func handle(client net.Conn) {
	defer client.Close()

	backend, err := net.Dial(netKind(*backendAddr), *backendAddr)
	if err != nil {
		log.Printf("Dial backend %q: %v", *backendAddr, err)
		return
	}
	defer backend.Close()

	cch := channel.Netstring(client, client)
	bch := channel.Netstring(backend, backend)

	done := make(chan error, 2)
	go func() { done <- relay(cch, bch, "client->backend") }()
	go func() { done <- relay(bch, cch, "backend->client") }()
	<-done
}

func relay(src, dst channel.Channel, label string) error {
	for {
		msg, err := src.Recv()
		if err != nil {
			if err != io.EOF && *doVerbose {
				log.Printf("%s: recv: %v", label, err)
			}
			return err
		}
		if err := dst.Send(msg); err != nil {
			if *doVerbose {
				log.Printf("%s: send: %v", label, err)
			}
			return err
		}
	}
}
