package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/sessionforge/authgate/pkg/mailer"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	reset_token TEXT,
	reset_token_expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Config holds the Postgres identity provider configuration.
type Config struct {
	DatabaseURL   string        `env:"DATABASE_URL,required"`
	BcryptCost    int           `env:"IDENTITY_BCRYPT_COST" envDefault:"10"`
	ResetTokenTTL time.Duration `env:"IDENTITY_RESET_TOKEN_TTL" envDefault:"1h"`
	ResetBaseURL  string        `env:"IDENTITY_RESET_BASE_URL" envDefault:"http://localhost:8080/reset-password"`
	QueryTimeout  time.Duration `env:"IDENTITY_QUERY_TIMEOUT" envDefault:"5s"`
}

// PostgresProvider implements Provider on a users table with bcrypt hashes.
type PostgresProvider struct {
	pool   *pgxpool.Pool
	mail   mailer.Sender
	config Config
	log    *slog.Logger
}

// NewPostgresProvider creates a Postgres-backed identity provider.
func NewPostgresProvider(pool *pgxpool.Pool, mail mailer.Sender, cfg Config, log *slog.Logger) *PostgresProvider {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &PostgresProvider{pool: pool, mail: mail, config: cfg, log: log}
}

// EnsureSchema creates the users table if it does not exist.
func (p *PostgresProvider) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *PostgresProvider) CreateAccount(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	user := &User{Email: email}
	err = p.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		email, string(hash),
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailAlreadyInUse
		}
		return nil, errors.Join(ErrUnavailable, err)
	}

	p.log.InfoContext(ctx, "account created", slog.String("email", email))
	return user, nil
}

func (p *PostgresProvider) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	user := &User{Email: email}
	var hash string
	err := p.pool.QueryRow(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Join(ErrUnavailable, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrWrongPassword
	}

	return user, nil
}

func (p *PostgresProvider) SendPasswordReset(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}

	qctx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	tag, err := p.pool.Exec(qctx,
		`UPDATE users SET reset_token = $1, reset_token_expires_at = $2 WHERE email = $3`,
		token, time.Now().Add(p.config.ResetTokenTTL), email,
	)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	link := fmt.Sprintf("%s?token=%s", p.config.ResetBaseURL, token)
	err = p.mail.SendEmail(ctx, mailer.SendEmailParams{
		SendTo:   email,
		Subject:  "Password reset",
		BodyHTML: fmt.Sprintf(`<p>To reset your password, follow <a href="%s">this link</a>. It expires in %s.</p>`, link, p.config.ResetTokenTTL),
		Tag:      "password-reset",
	})
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}

	p.log.InfoContext(ctx, "password reset dispatched", slog.String("email", email))
	return nil
}

func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
