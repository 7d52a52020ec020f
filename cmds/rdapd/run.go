package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/safing/rdapd/base/log"
	"github.com/safing/rdapd/service"
)

var (
	printStackOnExit bool

	sigUSR1 = syscall.Signal(0xa) // dummy for windows
)

func cmdRun(_ *cobra.Command, _ []string) {
	instance, err := service.New(svcCfg)
	if err != nil {
		fmt.Printf("error creating an instance: %s\n", err)
		os.Exit(2)
	}
	run(instance)
}

func run(instance *service.Instance) {
	// Start logging.
	if err := log.Start(svcCfg.LogLevel, svcCfg.LogToStdout, svcCfg.LogDir); err != nil {
		fmt.Printf("failed to start logging: %s\n", err)
		os.Exit(1)
	}

	// Start instance.
	go func() {
		if err := instance.Start(); err != nil {
			fmt.Printf("instance start failed: %s\n", err)

			// Print stack on start failure, if enabled.
			if printStackOnExit {
				printStackTo(os.Stdout, "PRINTING STACK ON START FAILURE")
			}

			os.Exit(1)
		}
	}()

	// Wait for signal.
	signalCh := make(chan os.Signal, 1)
	signal.Notify(
		signalCh,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		sigUSR1,
	)

	for {
		sig := <-signalCh
		// Only print and continue to wait if SIGUSR1.
		if sig == sigUSR1 {
			printStackTo(os.Stderr, "PRINTING STACK ON REQUEST")
			continue
		}

		fmt.Println(" <INTERRUPT>") // CLI output.
		slog.Warn("program was interrupted, stopping")
		break
	}

	// Catch signals during shutdown.
	// Rapid unplanned disassembly after 5 interrupts.
	go func() {
		forceCnt := 5
		for {
			<-signalCh
			forceCnt--
			if forceCnt > 0 {
				fmt.Printf(" <INTERRUPT> again, but already shutting down - %d more to force\n", forceCnt)
			} else {
				printStackTo(os.Stderr, "PRINTING STACK ON FORCED EXIT")
				os.Exit(1)
			}
		}
	}()

	// Rapid unplanned disassembly after 3 minutes.
	go func() {
		time.Sleep(3 * time.Minute)
		printStackTo(os.Stderr, "PRINTING STACK - TAKING TOO LONG FOR SHUTDOWN")
		os.Exit(1)
	}()

	// Stop instance.
	if err := instance.Stop(); err != nil {
		slog.Error("failed to stop", "err", err)
	}
	log.Shutdown()

	// Print stack on shutdown, if enabled.
	if printStackOnExit {
		printStackTo(os.Stdout, "PRINTING STACK ON EXIT")
	}
}

func printStackTo(writer io.Writer, msg string) {
	_, err := fmt.Fprintf(writer, "===== %s =====\n", msg)
	if err == nil {
		err = pprof.Lookup("goroutine").WriteTo(writer, 1)
	}
	if err != nil {
		slog.Error("failed to write stack trace", "err", err)
	}
}
