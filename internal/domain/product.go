package domain

type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Variant struct {
	ID            ID     `json:"id"`
	SKU           string `json:"sku"`
	Name          string `json:"variant_name,omitempty"`
	Size          string `json:"size,omitempty"`
	Packaging     string `json:"packaging,omitempty"`
	SellingPrice  Amount `json:"selling_price"`
	StockQuantity int    `json:"stock_quantity"`
	IsActive      bool   `json:"is_active"`
	ImageURL      string `json:"image_url,omitempty"`
}

// Unit is the size or packaging label shown next to the product name.
func (v Variant) Unit() string {
	if v.Size != "" {
		return v.Size
	}
	if v.Packaging != "" {
		return v.Packaging
	}
	return v.Name
}

func (v Variant) Available() bool {
	return v.IsActive && v.StockQuantity > 0
}

type Product struct {
	ID       ID        `json:"id"`
	Name     string    `json:"name"`
	Brand    string    `json:"brand,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	Category Category  `json:"category"`
	Variants []Variant `json:"variants"`
}

func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID.String() == id {
			return v, true
		}
	}
	return Variant{}, false
}

// LineItem snapshots the variant for the cart. The stock count at the time
// of browsing becomes the soft cap on quantity.
func (p Product) LineItem(v Variant) LineItem {
	image := v.ImageURL
	if image == "" {
		image = p.ImageURL
	}
	return LineItem{
		VariantID:   v.ID.String(),
		ProductID:   p.ID.String(),
		ProductName: p.Name,
		Brand:       p.Brand,
		Unit:        v.Unit(),
		ImageURL:    image,
		UnitPrice:   v.SellingPrice.Float64(),
		MaxQuantity: v.StockQuantity,
	}
}
