package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Language is a master record books can be filed under.
type Language struct {
	ID   int64  `db:"id" json:"id"`     // languages.id
	Name string `db:"name" json:"name"` // languages.name
}

// Category is a master record books can be filed under.
type Category struct {
	ID   int64  `db:"id" json:"id"`     // categories.id
	Name string `db:"name" json:"name"` // categories.name
}

// Book is a catalog entry as stored in the `books` table.
//
// Fields:
//
//	BookCode    – unique external code printed on the copy.
//	StockQty    – copies on hand; nullable and may go negative when
//	              orders are accepted past the available stock.
//	IsAvailable – derived from StockQty (> 0) whenever stock changes.
//	FrontImage,
//	BackImage   – opaque blob names returned by the storage layer.
//
// The remaining descriptive columns (author, tikakar, prakashak, ...) are
// carried verbatim and have no behaviour attached.
type Book struct {
	ID           int64               `db:"id" json:"id"`
	BookCode     int64               `db:"book_code" json:"bookCode"`
	Title        string              `db:"title" json:"title"`
	Description  *string             `db:"description" json:"description"`
	FrontImage   *string             `db:"front_image" json:"frontImage"`
	BackImage    *string             `db:"back_image" json:"backImage"`
	StockQty     *int64              `db:"stock_qty" json:"stockQty"`
	IsAvailable  bool                `db:"is_available" json:"isAvailable"`
	Featured     bool                `db:"featured" json:"featured"`
	LanguageID   *int64              `db:"language_id" json:"languageId"`
	CategoryID   *int64              `db:"category_id" json:"categoryId"`
	KabatNumber  *int64              `db:"kabat_number" json:"kabatNumber"`
	BookSize     *string             `db:"book_size" json:"bookSize"`
	Author       *string             `db:"author" json:"author"`
	Tikakar      *string             `db:"tikakar" json:"tikakar"`
	Prakashak    *string             `db:"prakashak" json:"prakashak"`
	Sampadak     *string             `db:"sampadak" json:"sampadak"`
	Anuvadak     *string             `db:"anuvadak" json:"anuvadak"`
	Vishay       *string             `db:"vishay" json:"vishay"`
	Shreni1      *string             `db:"shreni1" json:"shreni1"`
	Shreni2      *string             `db:"shreni2" json:"shreni2"`
	Shreni3      *string             `db:"shreni3" json:"shreni3"`
	Pages        *int64              `db:"pages" json:"pages"`
	YearAD       *int64              `db:"year_ad" json:"yearAD"`
	VikramSamvat *int64              `db:"vikram_samvat" json:"vikramSamvat"`
	VeerSamvat   *int64              `db:"veer_samvat" json:"veerSamvat"`
	Price        decimal.NullDecimal `db:"price" json:"price"`
	Prakar       *string             `db:"prakar" json:"prakar"`
	Edition      *int64              `db:"edition" json:"edition"`
	CreatedAt    time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updatedAt"`

	Language *Language `db:"-" json:"language,omitempty"`
	Category *Category `db:"-" json:"category,omitempty"`
}

// Stock returns the stock on hand, treating a NULL column as zero.
func (b *Book) Stock() int64 {
	if b.StockQty == nil {
		return 0
	}
	return *b.StockQty
}

// SetStock stores n and recomputes availability.
func (b *Book) SetStock(n int64) {
	b.StockQty = &n
	b.IsAvailable = n > 0
}
