package filter

// Field is a recognized filter field name.
type Field string

const (
	FieldAmount        Field = "amount"
	FieldDate          Field = "date"
	FieldCategory      Field = "category"
	FieldTag           Field = "tag"
	FieldPaymentMethod Field = "payment_method"
	FieldMonth         Field = "month"
)

// Attribute is the record attribute a field constrains.
type Attribute string

const (
	AttrAmount        Attribute = "amount"
	AttrDate          Attribute = "date"
	AttrCategory      Attribute = "category_name"
	AttrTag           Attribute = "tag_name"
	AttrPaymentMethod Attribute = "payment_method_name"
	AttrMonth         Attribute = "date_month"
)

// Group decides how constraints on the same field are joined.
type Group int

const (
	GroupAnd Group = iota + 1
	GroupOr
)

func (g Group) String() string {
	switch g {
	case GroupAnd:
		return "AND"
	case GroupOr:
		return "OR"
	default:
		return "?"
	}
}

// FieldInfo is one row of the field table.
type FieldInfo struct {
	Field     Field
	Attribute Attribute
	Group     Group
}

// fieldTable is fixed: amount and date narrow (AND), reference names and
// month widen (OR).
var fieldTable = []FieldInfo{
	{FieldAmount, AttrAmount, GroupAnd},
	{FieldDate, AttrDate, GroupAnd},
	{FieldCategory, AttrCategory, GroupOr},
	{FieldTag, AttrTag, GroupOr},
	{FieldPaymentMethod, AttrPaymentMethod, GroupOr},
	{FieldMonth, AttrMonth, GroupOr},
}

// Fields returns the recognized fields in table order.
func Fields() []FieldInfo {
	return append([]FieldInfo(nil), fieldTable...)
}

// Lookup returns the table entry for f.
func Lookup(f Field) (FieldInfo, bool) {
	for _, info := range fieldTable {
		if info.Field == f {
			return info, true
		}
	}
	return FieldInfo{}, false
}

// Classify maps a raw field name to its table entry. Names match exactly.
func Classify(name string) (FieldInfo, error) {
	if info, ok := Lookup(Field(name)); ok {
		return info, nil
	}
	return FieldInfo{}, &Error{Kind: ErrUnknownField, Field: name}
}
