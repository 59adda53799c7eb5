package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"daypo-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// Store implements app.QuizStore and the quiz loader on top of bun.
// Every write runs in one transaction.
type Store struct {
	db    *bun.DB
	clock func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

func (s *Store) ImportQuiz(ctx context.Context, title string, items []domain.ImportItem) (domain.Quiz, error) {
	quiz := quizRow{Title: title, CreatedAt: s.clock().UTC()}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&quiz).Returning("id").Exec(ctx); err != nil {
			return err
		}
		for _, it := range items {
			q := questionRow{QuizID: quiz.ID, OrigNo: it.OrigNo, Prompt: it.Prompt}
			if _, err := tx.NewInsert().Model(&q).Returning("id").Exec(ctx); err != nil {
				return err
			}
			correct := make(map[int]bool, len(it.Correct))
			for _, c := range it.Correct {
				correct[c] = true
			}
			opts := optionRows(q.ID, it.Options, func(i int) bool { return correct[i] })
			if len(opts) == 0 {
				continue
			}
			if _, err := tx.NewInsert().Model(&opts).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Quiz{}, domain.Storage("import quiz", err)
	}
	return quiz.toDomain(), nil
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().Model(&rows).Order("created_at DESC", "id DESC").Scan(ctx)
	if err != nil {
		return nil, domain.Storage("list quizzes", err)
	}
	return mapRows(rows, quizRow.toDomain), nil
}

func (s *Store) GetQuestion(ctx context.Context, questionID int64) (domain.Question, error) {
	q, err := getQuestion(ctx, s.db, questionID)
	if err != nil {
		return domain.Question{}, domain.Storage("get question", err)
	}
	return q.toDomain(), nil
}

func (s *Store) UpdateQuestion(ctx context.Context, questionID int64, edit domain.QuestionEdit) (domain.Question, error) {
	var q questionRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if q, err = getQuestion(ctx, tx, questionID); err != nil {
			return err
		}
		q.Prompt = edit.Prompt
		q.OrigNo = edit.OrigNo
		if _, err := tx.NewUpdate().Model(&q).Column("prompt", "orig_no").WherePK().Exec(ctx); err != nil {
			return err
		}
		// options are replaced wholesale
		if _, err := tx.NewDelete().Model((*optionRow)(nil)).Where("question_id = ?", questionID).Exec(ctx); err != nil {
			return err
		}
		opts := optionRows(questionID, edit.Options, func(i int) bool { return i == edit.CorrectIndex })
		if len(opts) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&opts).Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Question{}, domain.Storage("update question", err)
	}
	return q.toDomain(), nil
}

func (s *Store) DeleteQuestion(ctx context.Context, questionID int64) (string, error) {
	var key string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getQuestion(ctx, tx, questionID); err != nil {
			return err
		}
		keys, err := imageKeys(ctx, tx, []int64{questionID})
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			key = keys[0]
		}
		return deleteQuestions(ctx, tx, []int64{questionID})
	})
	if err != nil {
		return "", domain.Storage("delete question", err)
	}
	return key, nil
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID int64) ([]string, error) {
	var keys []string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getQuiz(ctx, tx, quizID); err != nil {
			return err
		}
		var ids []int64
		if err := tx.NewSelect().Model((*questionRow)(nil)).Column("id").Where("quiz_id = ?", quizID).Scan(ctx, &ids); err != nil {
			return err
		}
		var err error
		if keys, err = imageKeys(ctx, tx, ids); err != nil {
			return err
		}
		if err := deleteQuestions(ctx, tx, ids); err != nil {
			return err
		}
		_, err = tx.NewDelete().Model((*quizRow)(nil)).Where("id = ?", quizID).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, domain.Storage("delete quiz", err)
	}
	return keys, nil
}

func (s *Store) PutImage(ctx context.Context, img domain.Image) (string, error) {
	var prev string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getQuestion(ctx, tx, img.QuestionID); err != nil {
			return err
		}
		keys, err := imageKeys(ctx, tx, []int64{img.QuestionID})
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			prev = keys[0]
		}
		row := imageRow{QuestionID: img.QuestionID, Key: img.Key, Mime: img.Mime, UpdatedAt: img.UpdatedAt.UTC()}
		_, err = tx.NewInsert().Model(&row).
			On("CONFLICT (question_id) DO UPDATE").
			Set("storage_key = EXCLUDED.storage_key").
			Set("mime = EXCLUDED.mime").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return "", domain.Storage("put image", err)
	}
	return prev, nil
}

func (s *Store) DeleteImage(ctx context.Context, questionID int64) (string, error) {
	var key string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		keys, err := imageKeys(ctx, tx, []int64{questionID})
		if err != nil || len(keys) == 0 {
			return err
		}
		key = keys[0]
		_, err = tx.NewDelete().Model((*imageRow)(nil)).Where("question_id = ?", questionID).Exec(ctx)
		return err
	})
	if err != nil {
		return "", domain.Storage("delete image", err)
	}
	return key, nil
}

func (s *Store) Export(ctx context.Context) (domain.Backup, error) {
	var (
		quizzes   []quizRow
		questions []questionRow
		options   []optionRow
		images    []imageRow
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&quizzes).Order("id").Scan(ctx); err != nil {
			return err
		}
		if err := tx.NewSelect().Model(&questions).Order("id").Scan(ctx); err != nil {
			return err
		}
		if err := tx.NewSelect().Model(&options).Order("id").Scan(ctx); err != nil {
			return err
		}
		return tx.NewSelect().Model(&images).Order("question_id").Scan(ctx)
	})
	if err != nil {
		return domain.Backup{}, domain.Storage("export", err)
	}
	return domain.Backup{
		Quizzes:   mapRows(quizzes, quizRow.toDomain),
		Questions: mapRows(questions, questionRow.toDomain),
		Options:   mapRows(options, optionRow.toDomain),
		Images:    mapRows(images, imageRow.toDomain),
	}, nil
}

// LoadQuiz reads a quiz with its questions, options and image refs.
func (s *Store) LoadQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error) {
	quiz, err := getQuiz(ctx, s.db, quizID)
	if err != nil {
		return domain.QuizFull{}, domain.Storage("load quiz", err)
	}
	var questions []questionRow
	if err := s.db.NewSelect().Model(&questions).Where("quiz_id = ?", quizID).Order("id").Scan(ctx); err != nil {
		return domain.QuizFull{}, domain.Storage("load questions", err)
	}
	var (
		options []optionRow
		images  []imageRow
	)
	if len(questions) > 0 {
		ids := make([]int64, 0, len(questions))
		for _, q := range questions {
			ids = append(ids, q.ID)
		}
		if err := s.db.NewSelect().Model(&options).Where("question_id IN (?)", bun.In(ids)).Order("question_id", "opt_index").Scan(ctx); err != nil {
			return domain.QuizFull{}, domain.Storage("load options", err)
		}
		if err := s.db.NewSelect().Model(&images).Where("question_id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
			return domain.QuizFull{}, domain.Storage("load images", err)
		}
	}
	return domain.AssembleQuiz(
		quiz.toDomain(),
		mapRows(questions, questionRow.toDomain),
		mapRows(options, optionRow.toDomain),
		mapRows(images, imageRow.toDomain),
	), nil
}

func getQuiz(ctx context.Context, db bun.IDB, quizID int64) (quizRow, error) {
	var row quizRow
	err := db.NewSelect().Model(&row).Where("id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return row, domain.ErrQuizNotFound
	}
	return row, err
}

func getQuestion(ctx context.Context, db bun.IDB, questionID int64) (questionRow, error) {
	var row questionRow
	err := db.NewSelect().Model(&row).Where("id = ?", questionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return row, domain.ErrQuestionNotFound
	}
	return row, err
}

func imageKeys(ctx context.Context, db bun.IDB, questionIDs []int64) ([]string, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var keys []string
	err := db.NewSelect().Model((*imageRow)(nil)).Column("storage_key").
		Where("question_id IN (?)", bun.In(questionIDs)).Order("storage_key").
		Scan(ctx, &keys)
	return keys, err
}

// deleteQuestions removes questions with their dependents child-first, so it
// works whether or not the connection enforces foreign keys.
func deleteQuestions(ctx context.Context, db bun.IDB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := db.NewDelete().Model((*imageRow)(nil)).Where("question_id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
		return err
	}
	if _, err := db.NewDelete().Model((*optionRow)(nil)).Where("question_id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewDelete().Model((*questionRow)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx)
	return err
}
