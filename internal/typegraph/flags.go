package typegraph

import "github.com/goccy/go-json"

// legacyTypeFlags lists the names of the bits of the numeric type flags
// written by older compilers, bit i being named legacyTypeFlags[i].
var legacyTypeFlags = []string{
	"Any",             // 1 << 0
	"Unknown",         // 1 << 1
	"String",          // 1 << 2
	"Number",          // 1 << 3
	"Boolean",         // 1 << 4
	"Enum",            // 1 << 5
	"BigInt",          // 1 << 6
	"StringLiteral",   // 1 << 7
	"NumberLiteral",   // 1 << 8
	"BooleanLiteral",  // 1 << 9
	"EnumLiteral",     // 1 << 10
	"BigIntLiteral",   // 1 << 11
	"ESSymbol",        // 1 << 12
	"UniqueESSymbol",  // 1 << 13
	"Void",            // 1 << 14
	"Undefined",       // 1 << 15
	"Null",            // 1 << 16
	"Never",           // 1 << 17
	"TypeParameter",   // 1 << 18
	"Object",          // 1 << 19
	"Union",           // 1 << 20
	"Intersection",    // 1 << 21
	"Index",           // 1 << 22
	"IndexedAccess",   // 1 << 23
	"Conditional",     // 1 << 24
	"Substitution",    // 1 << 25
	"NonPrimitive",    // 1 << 26
	"TemplateLiteral", // 1 << 27
	"StringMapping",   // 1 << 28
}

// typeFlags returns the flags of a raw type record as names, whether they
// were written as a list of names or as a legacy bitfield.
func typeFlags(v interface{}) []string {
	switch flags := v.(type) {
	case []interface{}:
		names := make([]string, 0, len(flags))
		for _, f := range flags {
			if s, ok := f.(string); ok {
				names = append(names, s)
			}
		}
		return names
	case float64, json.Number, int:
		bits, ok := toInt(flags)
		if !ok || bits < 0 {
			return nil
		}
		return expandLegacyFlags(uint64(bits))
	default:
		return nil
	}
}

func expandLegacyFlags(bits uint64) []string {
	var names []string
	for i, name := range legacyTypeFlags {
		if bits&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return names
}

func hasFlag(flags []string, name string) bool {
	for _, f := range flags {
		if f == name {
			return true
		}
	}
	return false
}
