package task

import "ozon/parser/internal/domain"

// CategoryBatchTask carries the categories extracted from one page.
type CategoryBatchTask struct {
	Meta
	SourceURL  string                  `json:"source_url"`
	Categories []domain.CategoryRecord `json:"categories"`
}

func (t *CategoryBatchTask) TaskType() string {
	return "CategoryBatchTask"
}

func (t *CategoryBatchTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
