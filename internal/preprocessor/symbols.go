package preprocessor

import "fmt"

// ---------------- Parameter types ----------------

type ParamType int

const (
	Scalar ParamType = iota
	Vector3
	numParamTypes
)

func (t ParamType) String() string {
	switch t {
	case Scalar:
		return "float"
	case Vector3:
		return "vec3"
	default:
		return fmt.Sprintf("ParamType(%d)", int(t))
	}
}

// ParseParamType maps a directive type token to its ParamType.
func ParseParamType(tok string) (ParamType, bool) {
	switch tok {
	case "float":
		return Scalar, true
	case "vec3":
		return Vector3, true
	}
	return 0, false
}

// ---------------- Symbol table ----------------

// Key identifies a parameter by the file-local name of its unit and the
// parameter name.
type Key struct {
	File string
	Name string
}

func (k Key) String() string { return k.File + ":" + k.Name }

type Entry struct {
	Type   ParamType
	Offset int
}

// Access is the shader expression reading the parameter from its shared buffer.
func (e Entry) Access() string {
	switch e.Type {
	case Vector3:
		return fmt.Sprintf("%s.data[%d].xyz", vec3BufferName, e.Offset)
	default:
		return fmt.Sprintf("%s.data[%d]", floatBufferName, e.Offset)
	}
}

// Symbol is a defined parameter together with the line that defined it.
type Symbol struct {
	Key
	Entry
	Line int
}

// SymbolTable maps parameter keys to buffer offsets for one batch. Every type
// has its own counter, shared by all files, so the k-th definition of a type
// anywhere in the batch gets offset k-1.
type SymbolTable struct {
	index map[Key]int
	order []Symbol
	next  [numParamTypes]int
	files map[string]bool
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		index: map[Key]int{},
		files: map[string]bool{},
	}
}

// Define records a new parameter and returns whether it is the first one
// defined for file. Redefining a key fails whatever the declared type.
func (s *SymbolTable) Define(file, name string, typ ParamType, line int) (first bool, err error) {
	key := Key{File: file, Name: name}
	if i, ok := s.index[key]; ok {
		return false, &DuplicateParameterError{Key: key, Line: line, FirstLine: s.order[i].Line}
	}
	if typ < 0 || typ >= numParamTypes {
		return false, fmt.Errorf("%s:%d: invalid parameter type %v", file, line, typ)
	}
	sym := Symbol{Key: key, Entry: Entry{Type: typ, Offset: s.next[typ]}, Line: line}
	s.next[typ]++
	s.index[key] = len(s.order)
	s.order = append(s.order, sym)

	first = !s.files[file]
	s.files[file] = true
	return first, nil
}

func (s *SymbolTable) Resolve(file, name string) (Entry, error) {
	key := Key{File: file, Name: name}
	i, ok := s.index[key]
	if !ok {
		return Entry{}, &UndefinedParameterError{Key: key}
	}
	return s.order[i].Entry, nil
}

// Snapshot returns all symbols in definition order.
func (s *SymbolTable) Snapshot() []Symbol {
	out := make([]Symbol, len(s.order))
	copy(out, s.order)
	return out
}

func (s *SymbolTable) Len() int { return len(s.order) }

// Count returns how many parameters of typ have been defined so far, which is
// also the element count the runtime buffer for typ needs.
func (s *SymbolTable) Count(typ ParamType) int {
	if typ < 0 || typ >= numParamTypes {
		return 0
	}
	return s.next[typ]
}
