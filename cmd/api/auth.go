package main

import (
	"errors"
	"net/http"
	"strings"

	"petsitter/pkg/apperror"
	"petsitter/pkg/auth"
	"petsitter/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func register(c *gin.Context) {
	var request struct {
		Username string `json:"username" binding:"required,min=3,max=80"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Avatar   string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	hash, err := auth.HashPassword(request.Password)
	if err != nil {
		respondError(c, apperror.Wrap(err, "failed to hash password"))
		return
	}

	user := models.User{
		Username:     strings.TrimSpace(request.Username),
		Email:        strings.ToLower(strings.TrimSpace(request.Email)),
		PasswordHash: hash,
		Avatar:       request.Avatar,
		Role:         models.RoleUser,
	}
	if err := db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(c, apperror.Validation("username or email already taken"))
			return
		}
		respondError(c, apperror.Wrap(err, "failed to create user"))
		return
	}

	c.JSON(http.StatusCreated, userResponse(&user))
}

func login(c *gin.Context) {
	var request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	var user models.User
	err := db.WithContext(c.Request.Context()).Where("username = ?", request.Username).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, apperror.Wrap(err, "failed to load user"))
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, request.Password) {
		respondError(c, apperror.New(apperror.KindUnauthorized, "invalid credentials"))
		return
	}

	token, err := tokens.CreateAccessToken(user.ID, user.Role)
	if err != nil {
		respondError(c, apperror.Wrap(err, "failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userResponse(&user),
	})
}
