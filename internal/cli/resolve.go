package cli

import (
	"context"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
	"github.com/psadt/psadt-client/internal/tokenbroker"
	"github.com/psadt/psadt-client/internal/wire"
)

// ModalDialogParams carry the raw dialog arguments. The dialog operation
// validates them.
type ModalDialogParams struct {
	DialogType     string
	DialogStyle    string
	Options        string
	BlockExecution bool
	// Command is the target executable and its arguments, starting at the
	// first argv entry naming an existing file.
	Command []string
}

type BalloonTipParams struct{ Options wire.BalloonTipOptions }

type WindowInfoParams struct{ Options wire.WindowInfoOptions }

type SendKeysParams struct{ Request wire.SendKeysRequest }

type EnvironmentParams struct {
	Request wire.EnvironmentVariableRequest
}

type SilentRestartParams struct{ Delay time.Duration }

type TokenBrokerParams struct{ Request tokenbroker.Request }

// ClientServerParams are inherited pipe handle values.
type ClientServerParams struct {
	OutputPipe string
	InputPipe  string
	LogPipe    string
}

// Resolve expands -ArgumentsDictionary and fills Params for the mode.
func (inv *Invocation) Resolve(ctx context.Context, reg platform.Registry) error {
	if err := inv.expandArguments(ctx, reg); err != nil {
		return err
	}

	var err error
	switch inv.Mode {
	case ModeShowModalDialog:
		inv.Params, err = inv.modalDialog()
	case ModeShowBalloonTip:
		var opts wire.BalloonTipOptions
		opts, err = decodeOptions[wire.BalloonTipOptions](inv.Args)
		inv.Params = BalloonTipParams{Options: opts}
	case ModeGetProcessWindowInfo:
		var opts wire.WindowInfoOptions
		opts, err = decodeOptions[wire.WindowInfoOptions](inv.Args)
		inv.Params = WindowInfoParams{Options: opts}
	case ModeSendKeys:
		var req wire.SendKeysRequest
		req, err = decodeOptions[wire.SendKeysRequest](inv.Args)
		inv.Params = SendKeysParams{Request: req}
	case ModeGetEnvironmentVariable, ModeRemoveEnvironmentVariable:
		var name string
		name, err = variable(inv.Args)
		inv.Params = EnvironmentParams{Request: wire.EnvironmentVariableRequest{Variable: name}}
	case ModeSetEnvironmentVariable:
		inv.Params, err = setEnvironment(inv.Args)
	case ModeSilentRestart:
		inv.Params, err = silentRestart(inv.Args)
	case ModeTokenBroker:
		var req tokenbroker.Request
		req, err = tokenbroker.ParseRequest(inv.Args)
		inv.Params = TokenBrokerParams{Request: req}
	case ModeClientServer:
		inv.Params, err = clientServer(inv.Args)
	}
	if err != nil {
		inv.Params = nil
	}
	return err
}

func (inv *Invocation) expandArguments(ctx context.Context, reg platform.Registry) error {
	source, ok := inv.Args["ArgumentsDictionary"]
	if !ok {
		source, ok = inv.Args["ArgV"]
	}
	if !ok {
		return nil
	}

	var encoded string
	switch {
	case strings.HasPrefix(source, "HKEY"):
		i := strings.LastIndex(source, `\`)
		if i < 0 || reg == nil {
			return clienterr.Newf(clienterr.InvalidArguments, "The specified ArgumentsDictionary registry key [%s] does not exist or is invalid.", source)
		}
		value, err := reg.GetString(ctx, source[:i], source[i+1:])
		if err != nil {
			return clienterr.Wrap(clienterr.InvalidArguments, "The specified ArgumentsDictionary registry key ["+source+"] does not exist or is invalid.", err)
		}
		encoded = value
	case fileExists(source):
		raw, err := os.ReadFile(source)
		if err != nil {
			return clienterr.Wrap(clienterr.InvalidArguments, "The specified ArgumentsDictionary file ["+source+"] could not be read.", err)
		}
		encoded = strings.TrimSpace(string(raw))
	default:
		encoded = source
	}

	args, err := wire.DecodeString[map[string]string](encoded)
	if err != nil {
		return err
	}
	inv.Args = args
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Options returns the -Options value.
func Options(args map[string]string) (string, error) {
	opts, ok := args["Options"]
	if !ok {
		return "", clienterr.New(clienterr.NoOptions, "The required options were not specified on the command line.")
	}
	if strings.TrimSpace(opts) == "" {
		return "", clienterr.New(clienterr.InvalidOptions, "The specified options are null or invalid.")
	}
	return opts, nil
}

func decodeOptions[T any](args map[string]string) (T, error) {
	opts, err := Options(args)
	if err != nil {
		var zero T
		return zero, err
	}
	return wire.DecodeString[T](opts)
}

func (inv *Invocation) modalDialog() (ModalDialogParams, error) {
	p := ModalDialogParams{
		DialogType:  inv.Args["DialogType"],
		DialogStyle: inv.Args["DialogStyle"],
		Options:     inv.Args["Options"],
	}
	// Unparseable values mean no BlockExecution.
	p.BlockExecution, _ = strconv.ParseBool(inv.Args["BlockExecution"])
	if !p.BlockExecution {
		return p, nil
	}
	i := slices.IndexFunc(inv.Argv, fileExists)
	if i < 0 {
		return p, clienterr.New(clienterr.BlockExecutionFailed, "The BlockExecution command line does not name an existing executable.")
	}
	p.Command = slices.Clone(inv.Argv[i:])
	return p, nil
}

func variable(args map[string]string) (string, error) {
	name := strings.TrimSpace(args["Variable"])
	if name == "" {
		return "", clienterr.New(clienterr.InvalidArguments, "A required Variable was not specified on the command line.")
	}
	return name, nil
}

func setEnvironment(args map[string]string) (EnvironmentParams, error) {
	name, err := variable(args)
	if err != nil {
		return EnvironmentParams{}, err
	}
	value := args["Value"]
	if strings.TrimSpace(value) == "" {
		return EnvironmentParams{}, clienterr.New(clienterr.InvalidArguments, "A required Value was not specified on the command line.")
	}
	req := wire.EnvironmentVariableRequest{Variable: name, Value: value}
	for key, dst := range map[string]*bool{"Expandable": &req.Expandable, "Append": &req.Append, "Remove": &req.Remove} {
		raw, ok := args[key]
		if !ok {
			continue
		}
		if *dst, err = strconv.ParseBool(raw); err != nil {
			return EnvironmentParams{}, clienterr.Newf(clienterr.InvalidArguments, "The %s value [%s] must be true or false.", key, raw)
		}
	}
	return EnvironmentParams{Request: req}, nil
}

func silentRestart(args map[string]string) (SilentRestartParams, error) {
	secs, err := strconv.Atoi(strings.TrimSpace(args["Delay"]))
	if err != nil {
		return SilentRestartParams{}, clienterr.New(clienterr.InvalidArguments, "A required Delay was not specified on the command line.")
	}
	return SilentRestartParams{Delay: time.Duration(secs) * time.Second}, nil
}

func clientServer(args map[string]string) (ClientServerParams, error) {
	p := ClientServerParams{
		OutputPipe: strings.TrimSpace(args["OutputPipe"]),
		InputPipe:  strings.TrimSpace(args["InputPipe"]),
		LogPipe:    strings.TrimSpace(args["LogPipe"]),
	}
	switch {
	case p.OutputPipe == "":
		return p, clienterr.New(clienterr.NoOutputPipe, "The specified OutputPipe handle was null or invalid.")
	case p.InputPipe == "":
		return p, clienterr.New(clienterr.NoInputPipe, "The specified InputPipe handle was null or invalid.")
	case p.LogPipe == "":
		return p, clienterr.New(clienterr.NoLogPipe, "The specified LogPipe handle was null or invalid.")
	}
	return p, nil
}
