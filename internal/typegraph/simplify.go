// Package typegraph turns the raw type records dumped by the compiler into
// simplified, kind-tagged types and expands them into reference trees.
package typegraph

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"fortio.org/safecast"
	"github.com/goccy/go-json"
)

type Kind string

const (
	KindIntrinsic             Kind = "Intrinsic"
	KindUnion                 Kind = "Union"
	KindAliasedUnion          Kind = "AliasedUnion"
	KindIntersection          Kind = "Intersection"
	KindIndexedAccess         Kind = "IndexedAccess"
	KindIndexType             Kind = "IndexType"
	KindTuple                 Kind = "Tuple"
	KindConditionalType       Kind = "ConditionalType"
	KindSubstitutionType      Kind = "SubstitutionType"
	KindReverseMappedType     Kind = "ReverseMappedType"
	KindGenericTypeAlias      Kind = "GenericTypeAlias"
	KindGenericType           Kind = "GenericType"
	KindGenericInstantiation  Kind = "GenericInstantiation"
	KindDestructuring         Kind = "Destructuring"
	KindStringLiteral         Kind = "StringLiteral"
	KindNumberLiteral         Kind = "NumberLiteral"
	KindBigIntLiteral         Kind = "BigIntLiteral"
	KindTypeParameter         Kind = "TypeParameter"
	KindUniqueSymbol          Kind = "UniqueSymbol"
	KindKnownSymbol           Kind = "KnownSymbol"
	KindAnonymousFunction     Kind = "AnonymousFunction"
	KindAnonymousType         Kind = "AnonymousType"
	KindAnonymousClass        Kind = "AnonymousClass"
	KindAnonymousObject       Kind = "AnonymousObject"
	KindAnonymousJsxAttribute Kind = "AnonymousJsxAttributes"
	KindObject                Kind = "Object"
	KindJsxElementSignature   Kind = "JsxElementSignature"
	KindOther                 Kind = "Other"
	KindMissing               Kind = "Missing"
)

// Record is one raw element of a types file.
type Record map[string]interface{}

type (
	LineChar struct {
		Line int `json:"line"`
		Char int `json:"char"`
	}

	Location struct {
		Path  string    `json:"path"`
		Start *LineChar `json:"start,omitempty"`
		End   *LineChar `json:"end,omitempty"`
	}

	Field struct {
		Key   string
		Value interface{}
	}

	// SimplifiedType is the kind-tagged projection of a raw record. Fields
	// are kept in output order and include the name, location and display
	// when present.
	SimplifiedType struct {
		ID     int
		Kind   Kind
		Fields []Field
	}
)

var (
	leadingFields  = []string{"name", "aliasTypeArguments", "instantiatedType", "typeArguments"}
	trailingFields = []string{"location", "display"}

	knownSymbolRegex         = regexp.MustCompile(`^__@([^@]+)@\d+$`)
	jsxElementSignatureRegex = regexp.MustCompile(`^\(props: .+\) => .+$`)

	anonymousKinds = map[string]Kind{
		"__function":      KindAnonymousFunction,
		"__type":          KindAnonymousType,
		"__class":         KindAnonymousClass,
		"__object":        KindAnonymousObject,
		"__jsxAttributes": KindAnonymousJsxAttribute,
	}
)

// Field returns the value of the field named key.
func (t *SimplifiedType) Field(key string) (interface{}, bool) {
	for _, f := range t.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (t *SimplifiedType) Name() string {
	v, _ := t.Field("name")
	s, _ := v.(string)
	return s
}

func (t *SimplifiedType) Location() *Location {
	v, _ := t.Field("location")
	l, _ := v.(*Location)
	return l
}

// References returns the type ids referenced by the fields whose name
// contains "type", in field order.
func (t *SimplifiedType) References() []int {
	var ids []int
	for _, f := range t.Fields {
		if !strings.Contains(strings.ToLower(f.Key), "type") {
			continue
		}
		switch v := f.Value.(type) {
		case []interface{}:
			for _, e := range v {
				if id, ok := toInt(e); ok {
					ids = append(ids, id)
				}
			}
		default:
			if id, ok := toInt(v); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (t *SimplifiedType) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.writeJSON(&buf); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSON writes the type as a JSON object without its closing brace.
func (t *SimplifiedType) writeJSON(buf *bytes.Buffer) error {
	buf.WriteString(`{"id":`)
	b, err := json.Marshal(t.ID)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteString(`,"kind":`)
	b, err = json.Marshal(t.Kind)
	if err != nil {
		return err
	}
	buf.Write(b)
	for _, f := range t.Fields {
		buf.WriteByte(',')
		b, err = json.Marshal(f.Key)
		if err != nil {
			return err
		}
		buf.Write(b)
		buf.WriteByte(':')
		b, err = json.Marshal(f.Value)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

// record is the common intermediate form every classifier works on. The
// identifying fields are lifted out of fields.
type record struct {
	id            int
	name          string
	flags         []string
	display       string
	location      *Location
	destructuring bool
	fields        map[string]interface{}
}

func newRecord(raw Record) *record {
	r := &record{fields: make(map[string]interface{}, len(raw))}
	for k, v := range raw {
		r.fields[k] = v
	}
	r.id, _ = toInt(r.take("id"))
	r.name, _ = r.take("symbolName").(string)
	r.display, _ = r.take("display").(string)
	r.flags = typeFlags(r.take("flags"))
	delete(r.fields, "recursionId")

	if l := parseLocation(r.take("destructuringPattern")); l != nil {
		r.location = l
		r.destructuring = true
	}
	for _, key := range []string{"referenceLocation", "firstDeclaration"} {
		l := parseLocation(r.take(key))
		if r.location == nil {
			r.location = l
		}
	}
	return r
}

func (r *record) take(key string) interface{} {
	v := r.fields[key]
	delete(r.fields, key)
	return v
}

func (r *record) has(key string) bool {
	v, ok := r.fields[key]
	return ok && v != nil
}

func (r *record) hasList(key string) bool {
	l, ok := r.fields[key].([]interface{})
	return ok && len(l) > 0
}

// as starts building a type of the given kind out of every remaining field.
func (r *record) as(kind Kind) *builder {
	b := &builder{id: r.id, kind: kind, values: make(map[string]interface{}, len(r.fields)+3)}
	for k, v := range r.fields {
		b.values[k] = v
	}
	if r.name != "" {
		b.values["name"] = r.name
	}
	if r.location != nil {
		b.values["location"] = r.location
	}
	if r.display != "" {
		b.values["display"] = r.display
	}
	return b
}

type builder struct {
	id     int
	kind   Kind
	values map[string]interface{}
}

func (b *builder) rename(from, to string) *builder {
	if v, ok := b.values[from]; ok {
		delete(b.values, from)
		b.values[to] = v
	}
	return b
}

func (b *builder) drop(keys ...string) *builder {
	for _, k := range keys {
		delete(b.values, k)
	}
	return b
}

func (b *builder) set(key string, v interface{}) *builder {
	b.values[key] = v
	return b
}

func (b *builder) build() *SimplifiedType {
	t := &SimplifiedType{ID: b.id, Kind: b.kind}
	appendField := func(k string) {
		if v, ok := b.values[k]; ok && v != nil {
			t.Fields = append(t.Fields, Field{Key: k, Value: v})
		}
	}
	placed := make(map[string]bool, len(leadingFields)+len(trailingFields))
	for _, k := range leadingFields {
		appendField(k)
		placed[k] = true
	}
	for _, k := range trailingFields {
		placed[k] = true
	}
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		if !placed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		appendField(k)
	}
	for _, k := range trailingFields {
		appendField(k)
	}
	return t
}

type classifier func(r *record) *SimplifiedType

// classifiers are tried in order, the first one returning a type wins.
var classifiers = []classifier{
	func(r *record) *SimplifiedType {
		name, ok := r.fields["intrinsicName"].(string)
		if !ok {
			return nil
		}
		return r.as(KindIntrinsic).drop("intrinsicName").set("name", name).build()
	},
	func(r *record) *SimplifiedType {
		if !r.has("unionTypes") {
			return nil
		}
		kind := KindUnion
		if r.name != "" {
			kind = KindAliasedUnion
		}
		return r.as(kind).rename("unionTypes", "types").build()
	},
	func(r *record) *SimplifiedType {
		if !r.has("intersectionTypes") {
			return nil
		}
		return r.as(KindIntersection).rename("intersectionTypes", "types").build()
	},
	func(r *record) *SimplifiedType {
		if !r.has("indexedAccessObjectType") {
			return nil
		}
		return r.as(KindIndexedAccess).
			rename("indexedAccessObjectType", "objectType").
			rename("indexedAccessIndexType", "indexType").
			build()
	},
	func(r *record) *SimplifiedType {
		if !r.has("keyofType") {
			return nil
		}
		return r.as(KindIndexType).rename("keyofType", "type").build()
	},
	func(r *record) *SimplifiedType {
		if isTuple, _ := r.fields["isTuple"].(bool); !isTuple {
			return nil
		}
		return r.as(KindTuple).
			drop("isTuple", "instantiatedType").
			rename("typeArguments", "types").
			build()
	},
	func(r *record) *SimplifiedType {
		if !r.has("conditionalCheckType") {
			return nil
		}
		b := r.as(KindConditionalType).
			rename("conditionalCheckType", "checkType").
			rename("conditionalExtendsType", "extendsType").
			rename("conditionalTrueType", "trueType").
			rename("conditionalFalseType", "falseType")
		for _, k := range []string{"trueType", "falseType"} {
			if id, ok := toInt(b.values[k]); ok && id == -1 {
				b.drop(k)
			}
		}
		return b.build()
	},
	func(r *record) *SimplifiedType {
		if !r.has("substitutionBaseType") {
			return nil
		}
		return r.as(KindSubstitutionType).
			rename("substitutionBaseType", "baseType").
			rename("substitutionConstraintType", "constraintType").
			build()
	},
	func(r *record) *SimplifiedType {
		if !r.has("reverseMappedSourceType") {
			return nil
		}
		return r.as(KindReverseMappedType).
			rename("reverseMappedSourceType", "sourceType").
			rename("reverseMappedMappedType", "mappedType").
			rename("reverseMappedConstraintType", "constraintType").
			build()
	},
	func(r *record) *SimplifiedType {
		if !r.hasList("aliasTypeArguments") {
			return nil
		}
		return r.as(KindGenericTypeAlias).build()
	},
	func(r *record) *SimplifiedType {
		if !r.has("instantiatedType") || !r.hasList("typeArguments") {
			return nil
		}
		if target, ok := toInt(r.fields["instantiatedType"]); ok && target == r.id {
			return r.as(KindGenericType).
				drop("instantiatedType").
				rename("typeArguments", "typeParameters").
				build()
		}
		return r.as(KindGenericInstantiation).build()
	},
	func(r *record) *SimplifiedType {
		if !r.destructuring {
			return nil
		}
		return r.as(KindDestructuring).build()
	},
	func(r *record) *SimplifiedType {
		literals := []struct {
			flag string
			kind Kind
		}{
			{"StringLiteral", KindStringLiteral},
			{"NumberLiteral", KindNumberLiteral},
			{"BigIntLiteral", KindBigIntLiteral},
		}
		for _, l := range literals {
			if hasFlag(r.flags, l.flag) {
				return r.as(l.kind).rename("display", "value").build()
			}
		}
		if hasFlag(r.flags, "TypeParameter") {
			return r.as(KindTypeParameter).build()
		}
		if hasFlag(r.flags, "UniqueESSymbol") {
			return r.as(KindUniqueSymbol).build()
		}
		return nil
	},
	func(r *record) *SimplifiedType {
		m := knownSymbolRegex.FindStringSubmatch(r.name)
		if m == nil {
			return nil
		}
		return r.as(KindKnownSymbol).set("name", m[1]).build()
	},
	func(r *record) *SimplifiedType {
		kind, ok := anonymousKinds[r.name]
		if !ok {
			return nil
		}
		return r.as(kind).drop("name").build()
	},
	func(r *record) *SimplifiedType {
		if r.name == "" || !hasFlag(r.flags, "Object") {
			return nil
		}
		return r.as(KindObject).build()
	},
	func(r *record) *SimplifiedType {
		if !jsxElementSignatureRegex.MatchString(r.display) {
			return nil
		}
		return r.as(KindJsxElementSignature).build()
	},
}

// Simplify classifies a raw type record into exactly one kind.
func Simplify(raw Record) *SimplifiedType {
	r := newRecord(raw)
	for _, c := range classifiers {
		if t := c(r); t != nil {
			return t
		}
	}
	return r.as(KindOther).build()
}

func parseLocation(v interface{}) *Location {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	path, ok := m["path"].(string)
	if !ok {
		return nil
	}
	return &Location{
		Path:  path,
		Start: parseLineChar(m["start"]),
		End:   parseLineChar(m["end"]),
	}
}

func parseLineChar(v interface{}) *LineChar {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	line, ok := toInt(m["line"])
	if !ok {
		return nil
	}
	char, ok := toInt(m["character"])
	if !ok {
		return nil
	}
	return &LineChar{Line: line, Char: char}
}

// toInt converts an integral JSON number to an int.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		i, err := safecast.Convert[int](n)
		if err != nil {
			return 0, false
		}
		return i, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		c, err := safecast.Conv[int](i)
		if err != nil {
			return 0, false
		}
		return c, true
	default:
		return 0, false
	}
}

func (t *SimplifiedType) UnmarshalJSON(b []byte) error {
	decoded, err := decodeType(b, "")
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}

// decodeType reads a type written by MarshalJSON, ignoring the field named
// skip.
func decodeType(b []byte, skip string) (*SimplifiedType, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	bld := &builder{values: make(map[string]interface{}, len(raw))}
	for k, v := range raw {
		var err error
		switch k {
		case skip:
		case "id":
			err = json.Unmarshal(v, &bld.id)
		case "kind":
			err = json.Unmarshal(v, &bld.kind)
		case "location":
			var l Location
			err = json.Unmarshal(v, &l)
			bld.values[k] = &l
		default:
			var value interface{}
			err = json.Unmarshal(v, &value)
			bld.values[k] = value
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
	}
	return bld.build(), nil
}
