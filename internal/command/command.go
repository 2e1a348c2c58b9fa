// Package command turns tokenized command lines into cache operations and
// formats the results in the Redis-like textual reply format.
//
// Replies are exact: `OK`, `"value"`, `(nil)`, `(integer) N`, the three
// `key:value` lines of INFO memory, and `(error) ...` for anything the
// interpreter rejects. A rejected command never reaches the engine.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"miniredis/internal/cache"
	"miniredis/internal/logging"
	"miniredis/internal/telemetry"
)

//go:generate mockgen -source=command.go -destination=mock_engine_test.go -package=command

// Engine is the part of the cache the interpreter drives. Both *cache.Cache
// and *cache.Locked satisfy it.
type Engine interface {
	Set(key, value string)
	Get(key string) (string, bool)
	Delete(key string) int
	Exists(key string) int
	Len() int
	Expire(key string, seconds int64) int
	TTL(key string) int64
	ConfigSet(param string, value int64) error
	Stats() cache.Stats
}

// Reply is the result of one command line.
type Reply struct {
	Lines []string
	// Quit is set for EXIT and QUIT; Lines is empty then.
	Quit bool
}

const nilReply = "(nil)"

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger used for rejected commands (debug level).
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) {
		if l != nil {
			in.log = l
		}
	}
}

// WithRecorder counts commands and GET results and traces each command.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(in *Interpreter) {
		in.rec = r
	}
}

// Interpreter executes commands against an Engine. It adds no locking of
// its own.
type Interpreter struct {
	engine Engine
	log    *slog.Logger
	rec    *telemetry.Recorder
}

func New(engine Engine, opts ...Option) *Interpreter {
	in := &Interpreter{
		engine: engine,
		log:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// ExecuteLine tokenizes line and executes it.
func (in *Interpreter) ExecuteLine(ctx context.Context, line string) Reply {
	return in.Execute(ctx, Tokenize(line))
}

// Execute runs one tokenized command. Command names are case-insensitive;
// arguments past the ones a command uses are ignored.
func (in *Interpreter) Execute(ctx context.Context, args []string) Reply {
	if len(args) == 0 {
		return Reply{}
	}

	name := strings.ToUpper(args[0])
	def, ok := commands[name]
	if ok && def.quit {
		return Reply{Quit: true}
	}

	metric := strings.ToLower(name)
	if !ok {
		metric = "unknown"
	}
	ctx, span := in.rec.StartCommand(ctx, metric)

	var lines []string
	var err error
	switch {
	case !ok:
		err = fmt.Errorf("unknown command '%s'", args[0])
	case len(args)-1 < def.minArgs:
		err = fmt.Errorf("wrong number of arguments for '%s' command", metric)
	default:
		lines, err = def.run(in, ctx, args[1:])
	}
	span.End(err)

	if err != nil {
		return in.reject(ctx, name, err)
	}
	return Reply{Lines: lines}
}

func (in *Interpreter) reject(ctx context.Context, name string, err error) Reply {
	in.log.DebugContext(ctx, "command rejected",
		slog.String("command", name),
		slog.String("reason", err.Error()),
	)
	return Reply{Lines: []string{"(error) ERR " + err.Error()}}
}

type commandDef struct {
	minArgs int
	quit    bool
	run     func(in *Interpreter, ctx context.Context, args []string) ([]string, error)
}

var commands = map[string]commandDef{
	"SET":    {minArgs: 2, run: (*Interpreter).set},
	"GET":    {minArgs: 1, run: (*Interpreter).get},
	"DEL":    {minArgs: 1, run: (*Interpreter).del},
	"EXISTS": {minArgs: 1, run: (*Interpreter).exists},
	"DBSIZE": {minArgs: 0, run: (*Interpreter).dbsize},
	"EXPIRE": {minArgs: 2, run: (*Interpreter).expire},
	"TTL":    {minArgs: 1, run: (*Interpreter).ttl},
	"CONFIG": {minArgs: 3, run: (*Interpreter).config},
	"INFO":   {minArgs: 0, run: (*Interpreter).info},
	"EXIT":   {quit: true},
	"QUIT":   {quit: true},
}

var (
	errNotInteger       = errors.New("value is not an integer")
	errNegativeCapacity = errors.New("maxmemory must not be negative")
)

func (in *Interpreter) set(_ context.Context, args []string) ([]string, error) {
	in.engine.Set(args[0], args[1])
	return []string{"OK"}, nil
}

func (in *Interpreter) get(ctx context.Context, args []string) ([]string, error) {
	v, ok := in.engine.Get(args[0])
	in.rec.Lookup(ctx, ok)
	if !ok {
		return []string{nilReply}, nil
	}
	return []string{`"` + v + `"`}, nil
}

func (in *Interpreter) del(_ context.Context, args []string) ([]string, error) {
	return integer(int64(in.engine.Delete(args[0]))), nil
}

func (in *Interpreter) exists(_ context.Context, args []string) ([]string, error) {
	return integer(int64(in.engine.Exists(args[0]))), nil
}

func (in *Interpreter) dbsize(context.Context, []string) ([]string, error) {
	return integer(int64(in.engine.Len())), nil
}

func (in *Interpreter) expire(_ context.Context, args []string) ([]string, error) {
	seconds, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return nil, errNotInteger
	}
	return integer(int64(in.engine.Expire(args[0], seconds))), nil
}

func (in *Interpreter) ttl(_ context.Context, args []string) ([]string, error) {
	return integer(in.engine.TTL(args[0])), nil
}

// config handles CONFIG SET <param> <value>. The value must be an integer
// whatever the parameter; the engine decides whether the name is known.
func (in *Interpreter) config(_ context.Context, args []string) ([]string, error) {
	if !strings.EqualFold(args[0], "SET") {
		return nil, fmt.Errorf("unknown subcommand '%s'", args[0])
	}
	param := args[1]
	value, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return nil, errNotInteger
	}
	if value < 0 && strings.EqualFold(param, "maxmemory") {
		return nil, errNegativeCapacity
	}
	if err := in.engine.ConfigSet(param, value); err != nil {
		if errors.Is(err, cache.ErrUnknownParameter) {
			return nil, fmt.Errorf("unknown parameter '%s'", param)
		}
		return nil, err
	}
	return []string{"OK"}, nil
}

// info only knows the memory section; a bare INFO prints it too.
func (in *Interpreter) info(_ context.Context, args []string) ([]string, error) {
	if len(args) > 0 && !strings.EqualFold(args[0], "memory") {
		return nil, fmt.Errorf("unknown section '%s'", args[0])
	}
	st := in.engine.Stats()
	return []string{
		"used_memory:" + strconv.Itoa(st.Used),
		"maxmemory:" + strconv.Itoa(st.Capacity),
		"evicted_keys:" + strconv.FormatUint(st.Evicted, 10),
	}, nil
}

func integer(n int64) []string {
	return []string{"(integer) " + strconv.FormatInt(n, 10)}
}
