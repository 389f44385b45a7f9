package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"stroymarket/pos/internal/domain"
)

var errInvalidPIN = errors.New("invalid pin")

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	employees EmployeeStore
}

type EmployeeStore interface {
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	CreateEmployee(ctx context.Context, employee domain.Employee) error
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	Branch string `json:"branch,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, employees EmployeeStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		employees: employees,
	}
}

// Login finds the active employee whose PIN hash matches and issues a token.
// PINs are the only credential, so every active employee is checked.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	pin := strings.TrimSpace(req.PIN)
	if pin == "" {
		return domain.LoginResponse{}, errInvalidPIN
	}

	employee, err := a.findByPIN(ctx, pin)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(employee, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		Token:      token,
		EmployeeID: employee.ID,
		Name:       employee.Name,
		Role:       employee.Role,
		BranchID:   employee.BranchID,
		ExpiresAt:  expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) findByPIN(ctx context.Context, pin string) (domain.Employee, error) {
	employees, err := a.employees.ListEmployees(ctx)
	if err != nil {
		return domain.Employee{}, fmt.Errorf("list employees: %w", err)
	}
	for _, e := range employees {
		if !e.Active {
			continue
		}
		if verifyPIN(e.PINHash, pin) {
			return e, nil
		}
	}
	return domain.Employee{}, errInvalidPIN
}

// EnsureEmployee creates an employee with the given PIN unless an active
// employee already logs in with it.
func (a *AuthManager) EnsureEmployee(ctx context.Context, name string, role string, branchID string, pin string) error {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return errInvalidPIN
	}
	if _, err := a.findByPIN(ctx, pin); err == nil {
		return nil
	} else if !errors.Is(err, errInvalidPIN) {
		return err
	}

	hash, err := hashPIN(pin)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	return a.employees.CreateEmployee(ctx, domain.Employee{
		Name:      name,
		Role:      role,
		BranchID:  branchID,
		PINHash:   hash,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{EmployeeID: sub, Name: claims.Name, Role: claims.Role, BranchID: claims.Branch}, nil
}

func (a *AuthManager) sign(employee domain.Employee, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   employee.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "stroypos",
		},
		Role:   employee.Role,
		Name:   employee.Name,
		Branch: employee.BranchID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPIN(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPINHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPIN(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPINHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
