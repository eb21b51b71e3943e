package domain

// Category is a backend FAQ category.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon_emoji,omitempty"`
}

// FAQ is one frequently asked question of a category.
type FAQ struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// Customer is a customer directory record used for autofill.
type Customer struct {
	BusinessName   string `json:"business_name"`
	BusinessNumber string `json:"business_number"`
	Phone          string `json:"phone"`
}

// Question is a freeform question sent to the answering service.
type Question struct {
	Text        string
	TopK        int
	KnowledgeID *int
}
