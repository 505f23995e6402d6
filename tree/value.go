package tree

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNoValue is returned when a leaf carries neither an object nor a value.
var ErrNoValue = errors.New("tree: node has no value")

// FormatValue renders obj the way it appears as a node value. Slices are
// written as space separated decimal numbers; bytes are unsigned.
func FormatValue(obj any) string {
	switch v := obj.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return joinInts(len(v), func(i int) int64 { return int64(v[i]) })
	case []int8:
		return joinInts(len(v), func(i int) int64 { return int64(v[i]) })
	case []uint16:
		return joinInts(len(v), func(i int) int64 { return int64(v[i]) })
	case []int16:
		return joinInts(len(v), func(i int) int64 { return int64(v[i]) })
	case []uint32:
		return joinInts(len(v), func(i int) int64 { return int64(v[i]) })
	case []int32:
		return joinInts(len(v), func(i int) int64 { return int64(v[i]) })
	case []int:
		return joinInts(len(v), func(i int) int64 { return int64(v[i]) })
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func joinInts(n int, at func(int) int64) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatInt(at(i), 10))
	}
	return sb.String()
}

// Int returns the node's value as an integer within [min, max].
func Int(n *Node, min, max int64) (int64, error) {
	var v int64
	switch o := n.Object.(type) {
	case int:
		v = int64(o)
	case int8:
		v = int64(o)
	case int16:
		v = int64(o)
	case int32:
		v = int64(o)
	case int64:
		v = o
	case uint8:
		v = int64(o)
	case uint16:
		v = int64(o)
	case uint32:
		v = int64(o)
	case uint64:
		if o > math.MaxInt64 {
			return 0, fmt.Errorf("tree: %s: value %d out of range", n.Name, o)
		}
		v = int64(o)
	default:
		s := strings.TrimSpace(n.Value)
		if s == "" {
			return 0, fmt.Errorf("%s: %w", n.Name, ErrNoValue)
		}
		p, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("tree: %s: %w", n.Name, err)
		}
		v = p
	}
	if v < min || v > max {
		return 0, fmt.Errorf("tree: %s: value %d out of range [%d, %d]", n.Name, v, min, max)
	}
	return v, nil
}

// Ints returns the node's value as a list of integers within [min, max].
func Ints(n *Node, min, max int64) ([]int64, error) {
	var out []int64
	switch o := n.Object.(type) {
	case []byte:
		for _, b := range o {
			out = append(out, int64(b))
		}
	case []uint16:
		for _, b := range o {
			out = append(out, int64(b))
		}
	case []uint32:
		for _, b := range o {
			out = append(out, int64(b))
		}
	case []int:
		for _, b := range o {
			out = append(out, int64(b))
		}
	default:
		for _, f := range strings.Fields(n.Value) {
			p, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("tree: %s: %w", n.Name, err)
			}
			out = append(out, p)
		}
	}
	for _, v := range out {
		if v < min || v > max {
			return nil, fmt.Errorf("tree: %s: value %d out of range [%d, %d]", n.Name, v, min, max)
		}
	}
	return out, nil
}

// Bytes returns the node's value as a byte slice. Values written as signed
// bytes (-128..-1) are accepted alongside 0..255.
func Bytes(n *Node) ([]byte, error) {
	if b, ok := n.Object.([]byte); ok {
		return append([]byte(nil), b...), nil
	}
	vals, err := Ints(&Node{Name: n.Name, Value: n.Value}, -128, 255)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(vals))
	for i, v := range vals {
		out[i] = byte(v)
	}
	return out, nil
}

// String returns the node's value as text.
func String(n *Node) string {
	if s, ok := n.Object.(string); ok {
		return s
	}
	return n.Value
}

// Float returns the node's value as a float64.
func Float(n *Node) (float64, error) {
	switch o := n.Object.(type) {
	case float32:
		return float64(o), nil
	case float64:
		return o, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(n.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("tree: %s: %w", n.Name, err)
	}
	return f, nil
}
