package postgres

import (
	"context"
	"errors"
	"fmt"

	"daypo-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizLoader reads assembled quizzes straight from Postgres with pgx. It backs
// the quiz cache on the online deployment, where reads dominate writes.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.QuizFull, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx, `SELECT id, title, created_at FROM quizzes WHERE id=$1`, quizID).
		Scan(&quiz.ID, &quiz.Title, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizFull{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizFull{}, domain.Storage("load quiz", err)
	}

	questions, err := l.questions(ctx, quizID)
	if err != nil {
		return domain.QuizFull{}, domain.Storage("load questions", err)
	}
	options, err := l.options(ctx, quizID)
	if err != nil {
		return domain.QuizFull{}, domain.Storage("load options", err)
	}
	images, err := l.images(ctx, quizID)
	if err != nil {
		return domain.QuizFull{}, domain.Storage("load images", err)
	}
	return domain.AssembleQuiz(quiz, questions, options, images), nil
}

func (l *QuizLoader) questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, quiz_id, orig_no, prompt, explanation FROM questions WHERE quiz_id=$1 ORDER BY id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q      domain.Question
			origNo *int32
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &origNo, &q.Prompt, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if origNo != nil {
			q.OrigNo = int(*origNo)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (l *QuizLoader) options(ctx context.Context, quizID int64) ([]domain.Option, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT o.id, o.question_id, o.opt_index, o.text, o.is_correct
		FROM options o JOIN questions q ON q.id = o.question_id
		WHERE q.quiz_id=$1
		ORDER BY o.question_id, o.opt_index`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Option
	for rows.Next() {
		var (
			o   domain.Option
			idx int32
		)
		if err := rows.Scan(&o.ID, &o.QuestionID, &idx, &o.Text, &o.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		o.OptIndex = int(idx)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (l *QuizLoader) images(ctx context.Context, quizID int64) ([]domain.Image, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT i.question_id, i.storage_key, i.mime, i.updated_at
		FROM question_images i JOIN questions q ON q.id = i.question_id
		WHERE q.quiz_id=$1`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Image
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.QuestionID, &img.Key, &img.Mime, &img.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
