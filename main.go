package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"strconv"
	"time"

	"kgnchat/internal/client"
	"kgnchat/internal/server"
	"kgnchat/internal/ui"
	"kgnchat/internal/utils"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	"github.com/jessevdk/go-flags"
)

// version gets replaced during build
var version string = "dev"

// Options contains the flag options
type Options struct {
	Nick    string        `long:"nick" description:"Nickname to pre-fill."`
	Host    string        `long:"host" description:"Server address to pre-fill." default:"localhost"`
	Port    int           `long:"port" description:"Server port, or the port to listen on with --serve." default:"8080"`
	Timeout time.Duration `long:"timeout" description:"Bound on the connect step." default:"5s"`
	Serve   bool          `long:"serve" description:"Run a handshake server instead of the client."`
	Log     string        `long:"log" description:"Write logs to this file." value-name:"FILE"`
	Verbose []bool        `short:"v" long:"verbose" description:"Show verbose logging."`
	Version bool          `long:"version"`
}

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

func fail(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	_, err := parser.Parse()
	if err != nil {
		os.Exit(1)
		return
	}

	if options.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	// The client UI owns the terminal, so it only logs to a file.
	logOut := ioutil.Discard
	if options.Log != "" {
		f, err := os.OpenFile(options.Log, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fail(2, "Failed to open log file: %v\n", err)
		}
		defer f.Close()
		logOut = f
	} else if options.Serve {
		logOut = os.Stderr
	}
	logger := golog.New(logOut, logLevels[numVerbose])
	client.SetLogger(logger)
	server.SetLogger(logger)

	if options.Serve {
		serve(options.Port)
		return
	}

	details := utils.ConnectionDetails{
		Nickname: options.Nick,
		Address:  options.Host,
		Port:     strconv.Itoa(options.Port),
	}
	e := client.New(client.Config{})
	conn, nick, err := ui.RunConnectForm(e, details, options.Timeout)
	if err != nil {
		fail(1, "Client error: %v\n", err)
	}
	if conn == nil {
		return
	}
	if err := ui.StartChatUI(conn, nick); err != nil {
		fail(1, "Client error: %v\n", err)
	}
}

func serve(port int) {
	srv, err := server.Listen(":" + strconv.Itoa(port))
	if err != nil {
		fail(4, "Failed to listen on socket: %v\n", err)
	}

	go func() {
		if err := srv.Serve(); err != nil {
			fail(4, "Server error: %v\n", err)
		}
	}()
	fmt.Printf("Listening for connections on %v\n", srv.Addr())

	// Construct interrupt handler
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	<-sig // Wait for ^C signal
	fmt.Fprintln(os.Stderr, "Interrupt signal detected, shutting down.")
	srv.Close()
}
