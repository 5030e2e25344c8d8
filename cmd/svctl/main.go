// svctl talks to a running syncvoiced over its HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-syncvoice/internal/config"
	"github.com/teslashibe/go-syncvoice/internal/httpc"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/protocol"
	"github.com/teslashibe/go-syncvoice/pkg/web"
)

const usage = `usage: svctl [-addr host:port] <command> [args]

commands:
  objects                        list registered objects
  devices                        list devices
  get <id> <selector> [scope]    read a property (selector is a four-char code or name)
  set-rate <device-id> <hz>      request a nominal sample rate change
  volume <control-id> <scalar>   set a volume control (0..1)
  start <device-id>              start IO
  stop <device-id>               stop IO
  timestamp <device-id>          read the zero timestamp
  watch                          stream property notifications
`

func main() {
	addr := flag.String("addr", "", "Daemon address (default $SYNCVOICE_ADDR or localhost:8790)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	daemonAddr := config.DaemonAddr(*addr)
	api, err := httpc.NewAPI(config.DaemonAPIURL(daemonAddr), httpc.NewClient(*timeout))
	if err != nil {
		fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, api, daemonAddr, args); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, api *httpc.API, daemonAddr string, args []string) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "objects":
		return listObjects(ctx, api)
	case "devices":
		return listDevices(ctx, api)
	case "get":
		if len(args) < 2 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		addr := protocol.Address{Selector: args[1]}
		if len(args) > 2 {
			addr.Scope = args[2]
		}
		v, err := api.GetProperty(ctx, id, addr, "")
		if err != nil {
			return err
		}
		printValue(v)
		return nil
	case "set-rate":
		if len(args) != 2 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		hz, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}
		if err := api.SetSampleRate(ctx, id, hz); err != nil {
			return err
		}
		fmt.Printf("requested %g Hz on device %d\n", hz, id)
		return nil
	case "volume":
		if len(args) != 2 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		scalar, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return err
		}
		return api.SetVolume(ctx, id, float32(scalar))
	case "start", "stop":
		if len(args) != 1 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if cmd == "start" {
			return api.Start(ctx, id)
		}
		return api.Stop(ctx, id)
	case "timestamp":
		if len(args) != 1 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ts, err := api.TimeStamp(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("sample_time=%.0f host_time=%d seed=%d\n", ts.SampleTime, ts.HostTime, ts.Seed)
		return nil
	case "watch":
		return watch(ctx, config.DaemonWSURL(daemonAddr)+"/ws/notifications")
	}
	return fmt.Errorf("unknown command %q", cmd)
}

var errUsage = errors.New("wrong number of arguments (see svctl -h)")

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad object id %q", s)
	}
	return uint32(id), nil
}

func listObjects(ctx context.Context, api *httpc.API) error {
	objects, err := api.Objects(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCLASS\tOWNER\tACTIVE\tREFS\tALIASES")
	for _, o := range objects {
		fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%d\t%v\n", o.ID, o.Class, o.Owner, o.Active, o.RefCount, o.Aliases)
	}
	return w.Flush()
}

func listDevices(ctx context.Context, api *httpc.API) error {
	devices, err := api.Devices(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRATE\tRUNNING\tSTREAMS\tVOLUMES\tUID")
	for _, d := range devices {
		fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%d,%d\t%d,%d\t%s\n",
			d.ID, d.Name, d.SampleRate, d.Running,
			d.InputStream, d.OutputStream, d.InputVolume, d.OutputVolume, d.UID)
	}
	return w.Flush()
}

// printValue shows the raw bytes and the common numeric views.
func printValue(v *web.PropertyValue) {
	fmt.Printf("size: %d\n", v.Size)
	fmt.Printf("hex:  % x\n", v.Data)
	switch len(v.Data) {
	case hal.SizeUInt32:
		u, _ := hal.Uint32(v.Data)
		f, _ := hal.Float32(v.Data)
		fmt.Printf("u32:  %d (%s)\n", u, hal.FourCCString(u))
		fmt.Printf("f32:  %g\n", f)
	case hal.SizeFloat64:
		f, _ := hal.Float64(v.Data)
		fmt.Printf("f64:  %g\n", f)
	default:
		if len(v.Data) > 0 && utf8.Valid(v.Data) {
			fmt.Printf("str:  %s\n", v.Data)
		}
	}
}

func watch(ctx context.Context, url string) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer ws.Close()

	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	fmt.Fprintf(os.Stderr, "watching %s (Ctrl+C to exit)\n", url)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var entry web.NotificationEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			fmt.Println(string(data))
			continue
		}
		for _, a := range entry.Addresses {
			fmt.Printf("%s  object %d  %s/%s/%d\n", entry.Time, entry.ObjectID, a.Selector, a.Scope, a.Element)
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "svctl:", err)
	os.Exit(1)
}
