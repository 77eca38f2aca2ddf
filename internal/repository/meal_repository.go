package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthbyte/api/internal/models"
)

var ErrMealNotFound = errors.New("meal not found")

type MealRepository struct {
	pool *pgxpool.Pool
}

func NewMealRepository(pool *pgxpool.Pool) *MealRepository {
	return &MealRepository{pool: pool}
}

func (r *MealRepository) Create(ctx context.Context, meal models.Meal) error {
	const query = `
		INSERT INTO meals (
			id, type, name, description, calories, health_rating, tags,
			img_urls, likes, liked_by, owner_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12
		)
	`

	_, err := r.pool.Exec(ctx, query,
		meal.ID,
		meal.Type,
		meal.Name,
		meal.Description,
		meal.Calories,
		meal.HealthRating,
		meal.Tags,
		meal.ImgURLs,
		meal.Likes,
		meal.LikedBy,
		meal.OwnerID,
		meal.Timestamp,
	)
	return err
}

func (r *MealRepository) GetByID(ctx context.Context, id string) (models.Meal, error) {
	const query = `
		SELECT id, type, name, description, calories, health_rating, tags,
		       img_urls, likes, liked_by, owner_id, created_at
		FROM meals WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	meal, err := scanMeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Meal{}, ErrMealNotFound
		}
		return models.Meal{}, err
	}
	return meal, nil
}

func (r *MealRepository) ListRecent(ctx context.Context, limit, offset int) ([]models.Meal, error) {
	const query = `
		SELECT id, type, name, description, calories, health_rating, tags,
		       img_urls, likes, liked_by, owner_id, created_at
		FROM meals
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meals []models.Meal
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, meal)
	}
	return meals, rows.Err()
}

// ToggleLike flips userID's like on a meal in one statement and returns
// the new count.
func (r *MealRepository) ToggleLike(ctx context.Context, mealID, userID string) (int, error) {
	const query = `
		UPDATE meals
		SET liked_by = CASE
		        WHEN $2 = ANY(liked_by) THEN array_remove(liked_by, $2)
		        ELSE array_append(liked_by, $2)
		    END,
		    likes = CASE
		        WHEN $2 = ANY(liked_by) THEN likes - 1
		        ELSE likes + 1
		    END
		WHERE id = $1
		RETURNING likes
	`

	var likes int
	if err := r.pool.QueryRow(ctx, query, mealID, userID).Scan(&likes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrMealNotFound
		}
		return 0, err
	}
	return likes, nil
}

func scanMeal(row pgx.Row) (models.Meal, error) {
	var meal models.Meal
	err := row.Scan(
		&meal.ID,
		&meal.Type,
		&meal.Name,
		&meal.Description,
		&meal.Calories,
		&meal.HealthRating,
		&meal.Tags,
		&meal.ImgURLs,
		&meal.Likes,
		&meal.LikedBy,
		&meal.OwnerID,
		&meal.Timestamp,
	)
	return meal, err
}
