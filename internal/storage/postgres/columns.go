package postgres

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// numeric scans a NUMERIC, SMALLINT or BIGINT column into an unsigned field,
// rejecting values the field cannot hold.
type numeric[T ~uint8 | ~uint16 | ~uint32 | ~uint64] struct {
	dst *T
}

func num[T ~uint8 | ~uint16 | ~uint32 | ~uint64](dst *T) numeric[T] {
	return numeric[T]{dst: dst}
}

func (n numeric[T]) Scan(src any) error {
	var v uint64
	switch s := src.(type) {
	case nil:
		v = 0
	case int64:
		if s < 0 {
			return fmt.Errorf("scan unsigned: negative value %d", s)
		}
		v = uint64(s)
	case string:
		parsed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("scan unsigned: %w", err)
		}
		v = parsed
	case []byte:
		parsed, err := strconv.ParseUint(string(s), 10, 64)
		if err != nil {
			return fmt.Errorf("scan unsigned: %w", err)
		}
		v = parsed
	default:
		return fmt.Errorf("scan unsigned: unsupported type %T", src)
	}
	if uint64(T(v)) != v {
		return fmt.Errorf("scan unsigned: %d out of range", v)
	}
	*n.dst = T(v)
	return nil
}

// decimal renders an unsigned value for a $n::numeric parameter.
func decimal[T ~uint8 | ~uint16 | ~uint32 | ~uint64](v T) string {
	return strconv.FormatUint(uint64(v), 10)
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// nullable scans a nullable TIMESTAMPTZ, leaving the zero time for NULL.
type nullable struct {
	dst *time.Time
}

func (n nullable) Scan(src any) error {
	var nt sql.NullTime
	if err := nt.Scan(src); err != nil {
		return err
	}
	if nt.Valid {
		*n.dst = nt.Time.UTC()
	} else {
		*n.dst = time.Time{}
	}
	return nil
}

// utc scans a NOT NULL TIMESTAMPTZ in UTC.
type utc struct {
	dst *time.Time
}

func (u utc) Scan(src any) error {
	t, ok := src.(time.Time)
	if !ok {
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
	*u.dst = t.UTC()
	return nil
}
