package domain

import "time"

type Personalization struct {
	Age       int       `json:"age" dynamodbav:"age"`
	Gender    string    `json:"gender" dynamodbav:"gender"`
	CropType  string    `json:"crop_type" dynamodbav:"crop_type"`
	Region    string    `json:"region" dynamodbav:"region"`
	SoilType  string    `json:"soil_type" dynamodbav:"soil_type"`
	UpdatedAt time.Time `json:"-" dynamodbav:"updated_at"`
}

type PersonalizationInput struct {
	Gender   string `json:"gender" validate:"required"`
	Age      *int   `json:"age" validate:"required,gt=0,lte=120"`
	CropType string `json:"crop_type"`
	Region   string `json:"region"`
	SoilType string `json:"soil_type"`
}
