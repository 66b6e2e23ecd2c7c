package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/brunopacheco1/gnucobol-debug/client"
	"github.com/brunopacheco1/gnucobol-debug/debugger"
	"github.com/brunopacheco1/gnucobol-debug/server"
	"github.com/brunopacheco1/gnucobol-debug/terminal"
)

const version string = "0.1.0"

var (
	cobcPath   string
	cobcArgs   []string
	gdbPath    string
	gdbArgs    []string
	workingDir string
	listenAddr string
	listenPort int
	noDebug    bool
	headless   bool
	verbosity  int
)

var rootCmd = &cobra.Command{
	Use:   "gnucobol-debug",
	Short: "Source-level debugger for GnuCOBOL programs",
	Long: `gnucobol-debug compiles COBOL sources with cobc, opens a GDB/MI2
session against the produced executable and translates breakpoints, stack
frames and variables between COBOL and the generated C sources.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		flag.CommandLine.Parse(nil)
		flag.Set("logtostderr", "true")
		flag.Set("v", fmt.Sprintf("%d", verbosity))
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch <target.cbl> [group.cbl...]",
	Short: "Compile and debug a COBOL program",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := newDebugger()
		go func() {
			if err := d.Load(cwd(), args[0], args[1:]); err != nil {
				glog.Errorf("launch: %v", err)
			}
		}()
		return serveAndAttach(d)
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <host:port> [executable]",
	Short: "Debug a program running under a remote gdbserver",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		executable := ""
		if len(args) > 1 {
			executable = args[1]
		}
		d := newDebugger()
		go func() {
			if err := d.Connect(cwd(), executable, args[0]); err != nil {
				glog.Errorf("connect: %v", err)
			}
		}()
		return serveAndAttach(d)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gnucobol-debug version %s\n", version)
	},
}

func newDebugger() *debugger.Debugger {
	return debugger.New(debugger.Config{
		CobcPath: cobcPath,
		CobcArgs: cobcArgs,
		GdbPath:  gdbPath,
		GdbArgs:  gdbArgs,
		NoDebug:  noDebug,
	})
}

func cwd() string {
	if workingDir != "" {
		return workingDir
	}
	dir, err := os.Getwd()
	if err != nil {
		glog.Fatalf("resolving working directory: %v", err)
	}
	return dir
}

// serveAndAttach runs the websocket bridge and, unless headless, attaches an
// interactive terminal to it.
func serveAndAttach(d *debugger.Debugger) error {
	ws := &server.WebsocketServer{
		ListenAddr: listenAddr,
		ListenPort: listenPort,
		Bridge:     server.NewBridge(d),
	}
	if headless {
		return ws.Run()
	}
	go func() {
		if err := ws.Run(); err != nil {
			glog.Fatalf("websocket server: %v", err)
		}
	}()

	c := client.NewWebsocketClient(ws.URL())
	var err error
	for i := 0; i < 10; i++ {
		if err = c.Open(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("connecting to bridge: %w", err)
	}
	terminal.New(c).Run()
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cobcPath, "cobc", "cobc", "path to the GnuCOBOL compiler")
	rootCmd.PersistentFlags().StringSliceVar(&cobcArgs, "cobc-arg", nil, "extra compiler argument (repeatable)")
	rootCmd.PersistentFlags().StringVar(&gdbPath, "gdb", "gdb", "path to gdb")
	rootCmd.PersistentFlags().StringSliceVar(&gdbArgs, "gdb-arg", nil, "extra gdb argument (repeatable)")
	rootCmd.PersistentFlags().StringVar(&workingDir, "wd", "", "working directory (defaults to the current directory)")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "127.0.0.1", "bridge listen address")
	rootCmd.PersistentFlags().IntVar(&listenPort, "port", 3456, "bridge listen port")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "serve the bridge without an interactive terminal")
	rootCmd.PersistentFlags().IntVar(&verbosity, "verbosity", 0, "log verbosity")

	launchCmd.Flags().BoolVar(&noDebug, "no-debug", false, "compile and run without the debugger")

	rootCmd.AddCommand(launchCmd, connectCmd, versionCmd)
}

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
