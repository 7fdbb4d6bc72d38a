package model

import "time"

// LogDateLayout is the wire and storage format of a food log day.
const LogDateLayout = "2006-01-02"

// FoodLogEntry is one ingredient logged on one day. Amount is always grams;
// DisplayAmount and Unit echo what the user typed.
type FoodLogEntry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	LogDate        string    `json:"-"`
	IngredientName string    `json:"ingredient_name"`
	Amount         float64   `json:"amount"`
	DisplayAmount  float64   `json:"display_amount"`
	Unit           string    `json:"unit"`
	Position       int       `json:"position"`
	SyncedAt       time.Time `json:"synced_at"`
}

// LogDay is the canonical list of entries for one date.
type LogDay struct {
	LogDate string         `json:"log_date"`
	Entries []FoodLogEntry `json:"entries"`
}

// Mixture is a saved recipe. Per100g and Ingredients are opaque JSON
// documents owned by the client; the server only stores them.
type Mixture struct {
	ID          string           `json:"id"`
	UserID      string           `json:"-"`
	Name        string           `json:"name"`
	YieldG      float64          `json:"yield_g"`
	YieldUnit   string           `json:"yield_unit"`
	Per100g     map[string]any   `json:"per100g"`
	Ingredients []map[string]any `json:"ingredients"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// CustomIngredient is a user-defined ingredient with per-100g nutrition.
type CustomIngredient struct {
	ID        string         `json:"id"`
	UserID    string         `json:"-"`
	Name      string         `json:"name"`
	Nutrition map[string]any `json:"nutrition"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
