package key

import (
	"time"

	"go.uber.org/zap"
)

const (
	Bytes       = Int64Key("rc.bytes")
	Code        = IntKey("rc.code")
	Destination = StringKey("rc.destination")
	DurationMS  = DurationKey("rc.duration_ms")
	Filesystem  = StringKey("rc.filesystem")
	Kind        = StringKey("rc.kind")
	Method      = StringKey("rc.method")
	Path        = StringKey("rc.path")
	Patterns    = StringSliceKey("rc.patterns")
	Source      = StringKey("rc.source")
	Supported   = BoolKey("rc.supported")
	WorkerCount = IntKey("rc.worker_count")
)

type BoolKey string

func (bk BoolKey) Field(value bool) zap.Field {
	return zap.Bool(string(bk), value)
}

type StringKey string

func (sk StringKey) Field(value string) zap.Field {
	return zap.String(string(sk), value)
}

type StringSliceKey string

func (ssk StringSliceKey) Field(value []string) zap.Field {
	return zap.Strings(string(ssk), value)
}

type IntKey string

func (ik IntKey) Field(value int) zap.Field {
	return zap.Int(string(ik), value)
}

type Int64Key string

func (ik Int64Key) Field(value int64) zap.Field {
	return zap.Int64(string(ik), value)
}

type DurationKey string

func (dk DurationKey) Field(value time.Duration) zap.Field {
	return zap.Float64(string(dk), float64(value.Milliseconds()))
}
