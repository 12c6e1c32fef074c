package domain

// DefaultWeight applies to options without an explicit weight entry.
const DefaultWeight = 100.0

// ItemKey is the strongly typed identity of a trait option.
// Context holds the canonical textual ContextPath so the key stays comparable.
type ItemKey struct {
	Category string
	Value    string
	Context  string
}

// String renders the key for logs ("skin=male/noir - pale").
func (k ItemKey) String() string {
	if k.Context == "" {
		return k.Category + "=" + k.Value
	}
	return k.Category + "=" + k.Context + " - " + k.Value
}

// Bucket addresses one weight table: a category under a specific context.
type Bucket struct {
	Category string
	Context  string
}

// Option is a selectable trait value discovered in the asset library.
type Option struct {
	Category string
	Value    string
	Context  ContextPath
	// Asset is the slash separated path of the raster, relative to the asset root.
	Asset string
	// Weight is the resolved sampling weight; zero means never drawn unless
	// every candidate has zero weight.
	Weight float64
}

// Key returns the composite identity of the option.
func (o Option) Key() ItemKey {
	return ItemKey{Category: o.Category, Value: o.Value, Context: o.Context.String()}
}

// Bucket returns the weight table the option belongs to.
func (o Option) Bucket() Bucket {
	return Bucket{Category: o.Category, Context: o.Context.String()}
}
