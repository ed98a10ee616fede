package logger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	// Gruvbox dark
	colorTime      = "\x1b[38;5;108m"
	colorComponent = "\x1b[38;5;208m"
	colorValue     = "\x1b[38;5;109m"
	colorNumber    = "\x1b[38;5;175m"
	colorWarn      = "\x1b[38;5;214m"
	colorWarnBg    = "\x1b[48;5;58m"
	colorErr       = "\x1b[38;5;167m"
	colorErrBg     = "\x1b[48;5;88m"
)

var bufferPool = buffer.NewPool()

// shownFields are rendered first, in this order. Remaining fields follow in
// the order they were logged; nothing is dropped.
var shownFields = []string{
	FieldTarget,
	FieldSymbol,
	FieldScope,
	FieldAlias,
	FieldFile,
	FieldLine,
	FieldTypes,
	FieldFrames,
	FieldPatched,
	FieldFailures,
	FieldCount,
	FieldReason,
	FieldError,
	FieldDurationMS,
}

// minimalEncoder is a calm, compact console encoder.
// Format: "13:04:35  resolve  Resolved type  calculator/tokenizer.Token"
type minimalEncoder struct {
	zapcore.Encoder // base encoder for field serialization
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: enc.Encoder.Clone()}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(colorTime)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level only for WARN and above
	if lvl := levelString(ent.Level); lvl != "" {
		final.AppendString("  ")
		final.AppendString(lvl)
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorComponent)
		final.AppendString(ent.LoggerName)
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(ent.Message)

	if values := extractFieldValues(fields); values != "" {
		final.AppendString("  ")
		final.AppendString(values)
	}

	final.AppendString("\n")
	return final, nil
}

func levelString(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + colorWarnBg + colorWarn + "WARN" + colorReset
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorErrBg + colorErr + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// fieldValue extracts the printable value of a zap field
func fieldValue(field zapcore.Field) (string, bool) {
	switch field.Type {
	case zapcore.StringType:
		return field.String, false
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer), true
	case zapcore.Float64Type:
		return strconv.FormatFloat(math.Float64frombits(uint64(field.Integer)), 'g', -1, 64), true
	case zapcore.Float32Type:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(field.Integer))), 'g', -1, 32), true
	case zapcore.BoolType:
		return fmt.Sprintf("%t", field.Integer == 1), false
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error(), false
		}
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface), false
	}
	return "", false
}

// extractFieldValues renders fields as "key=value" pairs.
// file and line are joined as "file:line".
func extractFieldValues(fields []zapcore.Field) string {
	byKey := make(map[string]zapcore.Field, len(fields))
	for _, f := range fields {
		byKey[f.Key] = f
	}

	var parts []string
	emitted := make(map[string]bool, len(fields))
	emit := func(key string, f zapcore.Field) {
		emitted[key] = true
		val, numeric := fieldValue(f)
		if val == "" {
			return
		}
		if key == FieldFile {
			if line, ok := byKey[FieldLine]; ok {
				emitted[FieldLine] = true
				if l, _ := fieldValue(line); l != "" {
					val += ":" + l
				}
			}
		}
		color := colorValue
		if numeric {
			color = colorNumber
		}
		parts = append(parts, key+"="+color+val+colorReset)
	}

	for _, key := range shownFields {
		if f, ok := byKey[key]; ok && !emitted[key] {
			emit(key, f)
		}
	}
	for _, f := range fields {
		if !emitted[f.Key] {
			emit(f.Key, f)
		}
	}

	return strings.Join(parts, " ")
}
