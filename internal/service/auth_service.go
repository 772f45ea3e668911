package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"futureintern/internship-app/internal/curriculum"
	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/notify"
	"futureintern/internship-app/internal/repository"
)

var (
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrAccountInactive      = errors.New("account is deactivated. Please contact support")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
	ErrInvalidQualification = errors.New("valid qualification required")
)

// RegisterOutcome tells which registration path was taken.
type RegisterOutcome string

const (
	// RegisterCreated is a first registration: new student, new internship.
	RegisterCreated RegisterOutcome = "created"
	// RegisterAlreadyEnrolled means the student already has this domain.
	RegisterAlreadyEnrolled RegisterOutcome = "already_registered"
	// RegisterDomainAdded added a domain to an existing student, who must log in.
	RegisterDomainAdded RegisterOutcome = "domain_added"
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Name          string
	Email         string
	Contact       string
	Qualification string
	College       string
	Year          int
	CurrentCity   string
	Domain        string
	LinkedIn      string
}

// RegisterResult is the outcome of Register. Password and Token are only set
// for RegisterCreated; the password is never retrievable again.
type RegisterResult struct {
	Outcome    RegisterOutcome
	Student    *domain.Student
	Password   string
	Token      string
	Internship *domain.Internship
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token       string
	Student     *domain.Student
	Internships []domain.Internship
}

// AuthService handles registration, login and the student profile.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	CheckEmail(ctx context.Context, email string) (available bool, err error)
	Profile(ctx context.Context, studentID string) (*domain.Student, []domain.Internship, error)
	UpdateProfile(ctx context.Context, studentID string, update domain.ProfileUpdate) (*domain.Student, error)
}

// authService implements the AuthService interface.
type authService struct {
	students      repository.StudentRepository
	internships   repository.InternshipRepository
	enrollment    *enrollment
	passwords     PasswordStorage
	publisher     notify.Publisher
	log           zerolog.Logger
	jwtSecret     string
	jwtExpiration time.Duration
	now           func() time.Time
}

// NewAuthService creates a new instance of authService.
func NewAuthService(
	repos Repositories,
	catalog curriculum.Catalog,
	passwords PasswordStorage,
	jwtSecret string,
	jwtExpiration time.Duration,
	publisher notify.Publisher,
	log zerolog.Logger,
	opts ...Option,
) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = 7 * 24 * time.Hour
	}
	o := buildOptions(opts)
	log = log.With().Str("component", "auth_service").Logger()
	return &authService{
		students:    repos.Students,
		internships: repos.Internships,
		enrollment: &enrollment{
			internships: repos.Internships,
			tasks:       repos.Tasks,
			catalog:     catalog,
			publisher:   publisher,
			log:         log,
			now:         o.now,
		},
		passwords:     passwords,
		publisher:     publisher,
		log:           log,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		now:           o.now,
	}
}

// Register enrolls a student in a domain. A first registration creates the
// student with a generated password; later ones only add the domain.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("name and email cannot be empty")
	}
	if !domain.IsValidDomain(input.Domain) {
		return nil, ErrInvalidDomain
	}
	if !domain.IsValidQualification(input.Qualification) {
		return nil, ErrInvalidQualification
	}

	existing, err := s.students.GetByEmail(ctx, email)
	if err == nil {
		return s.registerExisting(ctx, existing, input.Domain)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup student: %w", err)
	}

	password, err := GeneratePassword()
	if err != nil {
		return nil, err
	}
	sealed, err := s.passwords.Seal(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	student := &domain.Student{
		Name:          strings.TrimSpace(input.Name),
		Email:         email,
		Password:      sealed,
		Contact:       input.Contact,
		Qualification: input.Qualification,
		College:       strings.TrimSpace(input.College),
		Year:          input.Year,
		CurrentCity:   strings.TrimSpace(input.CurrentCity),
		LinkedIn:      strings.TrimSpace(input.LinkedIn),
		RegisteredAt:  now,
		IsActive:      true,
	}
	if _, err := s.students.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Registered concurrently; continue as an existing student.
			existing, getErr := s.students.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, fmt.Errorf("reload student: %w", getErr)
			}
			return s.registerExisting(ctx, existing, input.Domain)
		}
		return nil, fmt.Errorf("create student: %w", err)
	}

	internship, _, _, err := s.enrollment.enroll(ctx, email, input.Domain)
	if err != nil {
		return nil, err
	}

	token, err := s.generateJWT(student)
	if err != nil {
		return nil, ErrTokenGeneration
	}
	if err := s.students.TouchLastLogin(ctx, student.ID, now); err != nil {
		s.log.Warn().Err(err).Str("student", email).Msg("Failed to record login time")
	}

	s.log.Info().Str("student", email).Str("domain", input.Domain).Msg("Student registered")
	publish(ctx, s.publisher, s.log,
		notify.NewEvent(notify.StudentRegistered, email, internship.ID, input.Domain, s.now()).With("name", student.Name))

	return &RegisterResult{
		Outcome:    RegisterCreated,
		Student:    student,
		Password:   password,
		Token:      token,
		Internship: internship,
	}, nil
}

func (s *authService) registerExisting(ctx context.Context, student *domain.Student, domainName string) (*RegisterResult, error) {
	internship, _, created, err := s.enrollment.enroll(ctx, student.Email, domainName)
	if err != nil {
		return nil, err
	}
	outcome := RegisterAlreadyEnrolled
	if created {
		outcome = RegisterDomainAdded
	}
	return &RegisterResult{Outcome: outcome, Student: student, Internship: internship}, nil
}

// Login checks the issued password and returns a token with the student's internships.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrAuthenticationFailed
	}

	student, err := s.students.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("lookup student: %w", err)
	}
	if !student.IsActive {
		return nil, ErrAccountInactive
	}
	if !s.passwords.Match(student.Password, password) {
		return nil, ErrAuthenticationFailed
	}

	token, err := s.generateJWT(student)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	now := s.now()
	if err := s.students.TouchLastLogin(ctx, student.ID, now); err != nil {
		s.log.Warn().Err(err).Str("student", email).Msg("Failed to record login time")
	} else {
		student.LastLoginAt = &now
	}

	internships, err := s.internships.ListByStudent(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list internships: %w", err)
	}
	return &LoginResult{Token: token, Student: student, Internships: internships}, nil
}

func (s *authService) CheckEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.students.GetByEmail(ctx, NormalizeEmail(email))
	if err == nil {
		return false, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("lookup student: %w", err)
}

func (s *authService) Profile(ctx context.Context, studentID string) (*domain.Student, []domain.Internship, error) {
	student, err := s.studentByID(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	internships, err := s.internships.ListByStudent(ctx, student.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("list internships: %w", err)
	}
	return student, internships, nil
}

// UpdateProfile replaces the editable profile fields. Email and password
// cannot be changed here.
func (s *authService) UpdateProfile(ctx context.Context, studentID string, update domain.ProfileUpdate) (*domain.Student, error) {
	student, err := s.studentByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !domain.IsValidQualification(update.Qualification) {
		return nil, ErrInvalidQualification
	}
	update.Name = strings.TrimSpace(update.Name)
	update.College = strings.TrimSpace(update.College)
	update.CurrentCity = strings.TrimSpace(update.CurrentCity)
	update.LinkedIn = strings.TrimSpace(update.LinkedIn)

	if err := s.students.UpdateProfile(ctx, student.ID, update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.studentByID(ctx, studentID)
}

func (s *authService) studentByID(ctx context.Context, studentID string) (*domain.Student, error) {
	oid, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, ErrStudentNotFound
	}
	student, err := s.students.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	return student, nil
}

// --- JWT Helper ---

// jwtClaims defines the structure of the JWT payload.
type jwtClaims struct {
	StudentID string `json:"studentId"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// generateJWT creates a new JWT token for the given student.
func (s *authService) generateJWT(student *domain.Student) (string, error) {
	now := s.now()
	claims := &jwtClaims{
		StudentID: student.ID.Hex(),
		Email:     student.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   student.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "futureintern",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
