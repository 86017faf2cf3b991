package queue

import (
	"github.com/platebook/platebook/internal/service"
)

type Queue struct {
	is service.ImportService
}

func NewQueue(is service.ImportService) *Queue {
	return &Queue{
		is: is,
	}
}

const TaskTypeImportContent = "import:content"

type ImportContentPayload struct {
	UserID   int64  `json:"user_id"`
	Platform string `json:"platform"`
	MaxItems int    `json:"max_items"`
}
