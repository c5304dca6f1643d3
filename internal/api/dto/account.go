package dto

import (
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
)

// AddAccountRequest registers an AWS key pair
type AddAccountRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	AccessKeyID     string `json:"access_key_id" validate:"required,aws_access_key"`
	SecretAccessKey string `json:"secret_access_key" validate:"required,min=16,max=128"`
}

// AccountDTO never carries the secret key
type AccountDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AccessKeyID string    `json:"access_key_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToAccountDTO converts an account, masking its access key
func ToAccountDTO(a *account.Account) AccountDTO {
	return AccountDTO{
		ID:          a.ID,
		Name:        a.Name,
		AccessKeyID: a.MaskedAccessKey(),
		CreatedAt:   a.CreatedAt,
	}
}
