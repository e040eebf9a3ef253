package etl

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestStageError_Unwrap(t *testing.T) {
	cause := fs.ErrPermission
	err := Wrap(StageWriteCSV, ErrIO, cause)

	if !errors.Is(err, ErrIO) {
		t.Error("errors.Is(err, ErrIO) = false")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("errors.Is(err, fs.ErrPermission) = false")
	}
	if errors.Is(err, ErrStorage) {
		t.Error("errors.Is(err, ErrStorage) = true")
	}

	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageWriteCSV {
		t.Errorf("errors.As StageError = %+v", se)
	}
}

func TestWrap_KeepsInnermostStage(t *testing.T) {
	inner := Errorf(StageTransform, ErrSchema, "no recognizable order-date column")
	outer := Wrap(StageExtract, ErrFetch, fmt.Errorf("run: %w", inner))

	if KindOf(outer) != ErrSchema {
		t.Errorf("KindOf() = %v, want ErrSchema", KindOf(outer))
	}
	if errors.Is(outer, ErrFetch) {
		t.Error("outer error should not gain the ErrFetch kind")
	}
}

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(StageLoad, ErrStorage, nil); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestStageError_Message(t *testing.T) {
	err := Errorf(StageExtract, ErrFetch, "unexpected HTTP status %d", 404)
	if got, want := err.Error(), "fetch error: unexpected HTTP status 404"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"nil", nil, ""},
		{"dns failure", Wrap(StageExtract, ErrFetch, errors.New("dial tcp: lookup example.invalid: no such host")), "FETCH001"},
		{"http status", Errorf(StageExtract, ErrFetch, "unexpected HTTP status 404 Not Found"), "FETCH002"},
		{"body too large", Errorf(StageExtract, ErrFetch, "response body too large"), "FETCH003"},
		{"other fetch", Errorf(StageExtract, ErrFetch, "tls handshake failure"), "FETCH000"},
		{"parse", Errorf(StageExtract, ErrParse, "record on line 3: wrong number of fields"), "PARSE001"},
		{"missing date column", Errorf(StageTransform, ErrSchema, "no recognizable order-date column"), "SCHEMA001"},
		{"duplicate column", Errorf(StageTransform, ErrSchema, "duplicate column: \"a\""), "SCHEMA002"},
		{"permission", Wrap(StageWriteCSV, ErrIO, fs.ErrPermission), "IO001"},
		{"db refused", Errorf(StageConnect, ErrStorage, "dial tcp 127.0.0.1:5432: connect: connection refused"), "STORE001"},
		{"db auth", Errorf(StageConnect, ErrStorage, "FATAL: password authentication failed for user \"postgres\""), "STORE002"},
		{"other storage", Errorf(StageLoad, ErrStorage, "relation is locked"), "STORE000"},
		{"storage pattern does not leak into fetch", Errorf(StageLoad, ErrIO, "connection refused"), "IO000"},
		{"config", Errorf(StageConfig, ErrConfig, "DB_HOST is required for the postgres driver"), "CONFIG001"},
		{"untyped", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.code {
				t.Errorf("MapError() code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestUserMessage_String(t *testing.T) {
	msg := MapError(Errorf(StageTransform, ErrSchema, "no recognizable order-date column"))
	want := `No order date column found (Code: SCHEMA001). Provide a column named "Order Date" or "OrderDate"`
	if got := msg.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if (UserMessage{}).String() != "" {
		t.Error("zero UserMessage should format as empty string")
	}
}
