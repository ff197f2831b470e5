package domain

// Category is the closed set of grocery categories. Values arriving from
// outside the process (store rows, AI responses) must go through
// ParseCategory so unknown values collapse to CategoryOther.
type Category string

const (
	CategoryProduce   Category = "Produce"
	CategoryDairy     Category = "Dairy"
	CategoryMeat      Category = "Meat"
	CategoryBakery    Category = "Bakery"
	CategoryFrozen    Category = "Frozen"
	CategoryPantry    Category = "Pantry"
	CategorySnacks    Category = "Snacks"
	CategoryBeverages Category = "Beverages"
	CategoryHousehold Category = "Household"
	CategoryOther     Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryProduce,
	CategoryDairy,
	CategoryMeat,
	CategoryBakery,
	CategoryFrozen,
	CategoryPantry,
	CategorySnacks,
	CategoryBeverages,
	CategoryHousehold,
	CategoryOther,
}

// GroceryItem is one row of the shared list after boundary validation.
// Note is a pointer so "no note" stays distinguishable from a blank note.
type GroceryItem struct {
	ID          string
	Name        string
	Note        *string
	Category    Category
	IsPurchased bool
	CreatedAt   int64 // epoch milliseconds, assigned by the store
	UserID      string
}

// Record is the raw wire/database row shape of a grocery item. It carries
// whatever the backing store returned; ParseRecord turns it into a
// GroceryItem or rejects it.
type Record struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Note        *string `json:"note,omitempty"`
	Category    string  `json:"category"`
	IsPurchased bool    `json:"is_purchased"`
	CreatedAt   int64   `json:"created_at"`
	UserID      string  `json:"user_id"`
}

// NewItem is the payload for an insert. The store assigns ID and CreatedAt;
// the authenticated principal supplies the owner.
type NewItem struct {
	Name        string   `json:"name"`
	Note        *string  `json:"note,omitempty"`
	Category    Category `json:"category"`
	IsPurchased bool     `json:"is_purchased"`
}

// ItemPatch is a partial update. Nil fields are left unchanged.
type ItemPatch struct {
	Name        *string   `json:"name,omitempty"`
	Note        *string   `json:"note,omitempty"`
	Category    *Category `json:"category,omitempty"`
	IsPurchased *bool     `json:"is_purchased,omitempty"`
}

// StarterItems is the curated seed list offered to empty households.
// Seeding twice inserts duplicates; the list is user-correctable.
var StarterItems = []NewItem{
	{Name: "Milk", Category: CategoryDairy, Note: ptr("1 Gallon")},
	{Name: "Eggs", Category: CategoryDairy, Note: ptr("Large, 1 dozen")},
	{Name: "Bread", Category: CategoryBakery, Note: ptr("Sourdough or Whole Wheat")},
	{Name: "Apples", Category: CategoryProduce, Note: ptr("Gala or Honeycrisp")},
	{Name: "Spinach", Category: CategoryProduce, Note: ptr("Fresh bag")},
	{Name: "Chicken Breast", Category: CategoryMeat, Note: ptr("1.5 lbs")},
	{Name: "Pasta", Category: CategoryPantry, Note: ptr("Penne or Spaghetti")},
}

func ptr(s string) *string { return &s }
