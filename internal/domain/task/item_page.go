package task

import "ozon/parser/internal/domain"

// ItemPageTask carries the items extracted from one listing page of a category.
type ItemPageTask struct {
	Meta
	CategoryURL string              `json:"category_url"`
	PageNumber  int                 `json:"page_number"`
	PageURL     string              `json:"page_url"`
	Items       []domain.ItemRecord `json:"items"`
}

func (t *ItemPageTask) TaskType() string {
	return "ItemPageTask"
}

func (t *ItemPageTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
