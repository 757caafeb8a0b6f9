package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// Committer фиксирует заявку и все её вложения одной транзакцией.
// Ошибка любой вставки откатывает заявку целиком.
type Committer struct {
	tx *TxRunner
}

// NewCommitter создаёт Committer поверх TxRunner.
func NewCommitter(tx *TxRunner) *Committer {
	return &Committer{tx: tx}
}

// Commit реализует conversation.Committer.
func (c *Committer) Commit(ctx context.Context, draft model.Draft) (*model.Request, error) {
	var req *model.Request
	err := c.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = commitDraft(ctx, NewRequestRepository(tx), draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// commitDraft записывает заявку и документы через переданный репозиторий.
func commitDraft(ctx context.Context, repo RequestRepository, draft model.Draft) (*model.Request, error) {
	req := &model.Request{
		UserID:  draft.UserID,
		Name:    draft.Name,
		Phone:   draft.Phone,
		Message: draft.Message,
	}
	if err := repo.Create(ctx, req); err != nil {
		return nil, err
	}

	req.Documents = make([]model.Document, 0, len(draft.Attachments))
	for _, a := range draft.Attachments {
		doc := model.Document{
			RequestID:   req.ID,
			FileRef:     a.FileRef,
			DisplayName: a.DisplayName,
		}
		if err := repo.AddDocument(ctx, &doc); err != nil {
			return nil, err
		}
		req.Documents = append(req.Documents, doc)
	}
	return req, nil
}
