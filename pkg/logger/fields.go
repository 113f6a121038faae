package logger

import "github.com/rs/zerolog"

// Field types for structured logging.
type Field interface {
	AddTo(event *zerolog.Event)
}

type StringField struct {
	Key   string
	Value string
}

func (f StringField) AddTo(event *zerolog.Event) {
	event.Str(f.Key, f.Value)
}

type StringsField struct {
	Key   string
	Value []string
}

func (f StringsField) AddTo(event *zerolog.Event) {
	event.Strs(f.Key, f.Value)
}

type IntField struct {
	Key   string
	Value int
}

func (f IntField) AddTo(event *zerolog.Event) {
	event.Int(f.Key, f.Value)
}

type Int64Field struct {
	Key   string
	Value int64
}

func (f Int64Field) AddTo(event *zerolog.Event) {
	event.Int64(f.Key, f.Value)
}

type Float64Field struct {
	Key   string
	Value float64
}

func (f Float64Field) AddTo(event *zerolog.Event) {
	event.Float64(f.Key, f.Value)
}

type BoolField struct {
	Key   string
	Value bool
}

func (f BoolField) AddTo(event *zerolog.Event) {
	event.Bool(f.Key, f.Value)
}

type ErrorField struct {
	Value error
}

func (f ErrorField) AddTo(event *zerolog.Event) {
	event.Err(f.Value)
}

type AnyField struct {
	Key   string
	Value interface{}
}

func (f AnyField) AddTo(event *zerolog.Event) {
	event.Interface(f.Key, f.Value)
}

// Constructors.

func String(key, value string) Field           { return StringField{Key: key, Value: value} }
func Strings(key string, value []string) Field { return StringsField{Key: key, Value: value} }
func Int(key string, value int) Field          { return IntField{Key: key, Value: value} }
func Int64(key string, value int64) Field      { return Int64Field{Key: key, Value: value} }
func Float64(key string, value float64) Field  { return Float64Field{Key: key, Value: value} }
func Bool(key string, value bool) Field        { return BoolField{Key: key, Value: value} }
func Error(err error) Field                    { return ErrorField{Value: err} }
func Any(key string, value interface{}) Field  { return AnyField{Key: key, Value: value} }
