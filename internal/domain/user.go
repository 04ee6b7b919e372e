package domain

import "time"

// User is an identity record in the directory. Handle and Email are each unique.
type User struct {
	UserID          string           `json:"id" dynamodbav:"user_id"`
	Handle          string           `json:"user_id" dynamodbav:"handle"`
	Name            string           `json:"name" dynamodbav:"name"`
	Email           string           `json:"email" dynamodbav:"email"`
	PasswordHash    string           `json:"-" dynamodbav:"password_hash"`
	Personalization *Personalization `json:"personalization,omitempty" dynamodbav:"personalization,omitempty"`
	CreatedAt       time.Time        `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time        `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Handle   string `json:"user_id" validate:"required,max=64,excludes=@"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,bcryptlen"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// ResetPasswordRequest commits a new password. Either OTP or ResetToken must be set.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required,min=6,bcryptlen"`
	OTP         string `json:"otp" validate:"omitempty,len=6,numeric"`
	ResetToken  string `json:"reset_token"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required"`
}
