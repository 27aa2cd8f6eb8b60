package mdb

// Column describes one column of a Schema: its name, declared Kind,
// whether it is part of the fixed part (all non-STR columns are, by
// construction — STR columns are always variable-width), and whether it
// participates in the row's primary key.
type Column struct {
	Name      string
	Kind      Kind
	PrimaryKey bool
}

// Schema is an ordered, immutable-after-registration list of columns.
// Grounded on original_source/memdb/row.h's Schema (fixed_part_size_,
// var_size_cols_ are derived and cached at construction).
type Schema struct {
	columns        []Column
	nameToID       map[string]int
	fixedPartSize  int
	varSizeCols    int
	varColIdx      map[int]int // column_id -> index within the var-part (0-based)
	keyColumnIDs   []int
	fixedOffsets   map[int]int // column_id -> byte offset within fixed part (fixed columns only)
}

// NewSchema builds a Schema from an ordered column list. Column order is
// significant: it determines fixed-part layout, var-part index order, and
// primary-key comparison order.
func NewSchema(columns []Column) *Schema {
	s := &Schema{
		columns:      columns,
		nameToID:     make(map[string]int, len(columns)),
		varColIdx:    make(map[int]int),
		fixedOffsets: make(map[int]int),
	}
	offset := 0
	for id, col := range columns {
		s.nameToID[col.Name] = id
		if col.PrimaryKey {
			s.keyColumnIDs = append(s.keyColumnIDs, id)
		}
		if col.Kind.Fixed() {
			s.fixedOffsets[id] = offset
			offset += col.Kind.FixedWidth()
		} else {
			s.varColIdx[id] = s.varSizeCols
			s.varSizeCols++
		}
	}
	s.fixedPartSize = offset
	return s
}

func (s *Schema) ColumnsCount() int { return len(s.columns) }

func (s *Schema) Column(id int) Column { return s.columns[id] }

func (s *Schema) FixedPartSize() int { return s.fixedPartSize }

func (s *Schema) VarSizeCols() int { return s.varSizeCols }

// GetColumnID resolves a column name to its id, or -1 if absent.
func (s *Schema) GetColumnID(name string) int {
	id, ok := s.nameToID[name]
	if !ok {
		return -1
	}
	return id
}

// KeyColumnIDs returns the column ids making up the primary key, in
// schema order.
func (s *Schema) KeyColumnIDs() []int { return s.keyColumnIDs }

// fixedOffset returns the byte offset of a fixed-width column within the
// row's fixed part.
func (s *Schema) fixedOffset(id int) int { return s.fixedOffsets[id] }

// varIndex returns the 0-based position of a variable-width column
// within the dense var-part index array.
func (s *Schema) varIndex(id int) int { return s.varColIdx[id] }
