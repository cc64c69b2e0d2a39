package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Коды выхода команд.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // обнаружена проблема (например, дубликаты номеров)
	ExitCommandError = 2 // ошибка запуска: флаги, соединение, ответ сервера
)

// ExitError — ошибка с кодом выхода процесса.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError создаёт ExitError без причины.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError оборачивает err с кодом выхода.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode извлекает код выхода; по умолчанию ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Printer печатает ответы в текстовом виде или JSON.
type Printer struct {
	Format string
	Writer io.Writer
}

// Message печатает protobuf-ответ.
func (p *Printer) Message(m proto.Message) error {
	if p.Format == "json" {
		return p.protoJSON(m)
	}
	switch v := m.(type) {
	case *structpb.Struct:
		return p.fields(v.AsMap())
	default:
		_, err := fmt.Fprintln(p.Writer, prototextLine(m))
		return err
	}
}

// Products печатает снимок каталога (поля version и products).
func (p *Printer) Products(snapshot *structpb.Struct) error {
	if p.Format == "json" {
		return p.protoJSON(snapshot)
	}

	fields := snapshot.GetFields()
	tw := tabwriter.NewWriter(p.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# version %d\n", int64(fields["version"].GetNumberValue()))
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tCATEGORY\tIMAGE")
	for _, item := range fields["products"].GetListValue().GetValues() {
		product := item.GetStructValue().GetFields()
		image := product["image"].GetStringValue()
		if image == "" {
			image = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n",
			product["id"].GetStringValue(),
			product["title"].GetStringValue(),
			product["price"].GetNumberValue(),
			product["category"].GetStringValue(),
			image,
		)
	}
	return tw.Flush()
}

// JSON печатает произвольное значение одной строкой JSON.
func (p *Printer) JSON(v any) error {
	return json.NewEncoder(p.Writer).Encode(v)
}

// Line печатает строку текстового режима.
func (p *Printer) Line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.Writer, format+"\n", args...)
}

func (p *Printer) protoJSON(m proto.Message) error {
	data, err := protojson.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.Writer, string(data))
	return err
}

func (p *Printer) fields(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(p.Writer, 0, 4, 1, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s:\t%v\n", k, values[k])
	}
	return tw.Flush()
}

func prototextLine(m proto.Message) string {
	data, err := protojson.Marshal(m)
	if err != nil {
		return fmt.Sprint(m)
	}
	return strings.TrimSpace(string(data))
}
