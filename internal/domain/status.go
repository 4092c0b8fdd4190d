package domain

// Status is the availability state read from an upstream product page.
type Status string

const (
	StatusAvailable    Status = "available"
	StatusOutOfStock   Status = "out_of_stock"
	StatusDiscontinued Status = "discontinued"
	StatusError        Status = "error"
)

// Sellable reports whether the status allows the product to be sold.
func (s Status) Sellable() bool {
	return s == StatusAvailable
}
