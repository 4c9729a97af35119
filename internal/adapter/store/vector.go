package store

import (
	"database/sql/driver"

	"github.com/pgvector/pgvector-go"
)

// nullVector scans a nullable pgvector column.
type nullVector struct {
	v *pgvector.Vector
}

func (n *nullVector) dest() any { return &n.v }

// slice returns nil for NULL or empty vectors.
func (n *nullVector) slice() []float32 {
	if n.v == nil {
		return nil
	}
	s := n.v.Slice()
	if len(s) == 0 {
		return nil
	}
	return s
}

// vectorArg converts an embedding to a query argument. Nil or empty
// vectors are stored as NULL.
func vectorArg(v []float32) driver.Valuer {
	if len(v) == 0 {
		return nullArg{}
	}
	return pgvector.NewVector(v)
}

type nullArg struct{}

func (nullArg) Value() (driver.Value, error) { return nil, nil }
