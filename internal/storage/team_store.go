package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrTeamNotFound is returned when nothing is stored for a team
var ErrTeamNotFound = errors.New("team not found")

// Team is what an install leaves behind for a workspace: the bot token it
// granted and the ids the bot posts under there
type Team struct {
	TeamID    string
	BotToken  string
	BotUserID string
	BotID     string
}

// TeamStore keeps the installation of each team
type TeamStore interface {
	GetTeam(ctx context.Context, teamID string) (Team, error)
	SaveTeam(ctx context.Context, team Team) error
}

// MemoryTeamStore implements TeamStore in process memory
type MemoryTeamStore struct {
	mu    sync.RWMutex
	teams map[string]Team
}

// NewMemoryTeamStore creates an empty MemoryTeamStore
func NewMemoryTeamStore() *MemoryTeamStore {
	return &MemoryTeamStore{teams: make(map[string]Team)}
}

func (m *MemoryTeamStore) GetTeam(_ context.Context, teamID string) (Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	team, ok := m.teams[teamID]
	if !ok {
		return Team{}, ErrTeamNotFound
	}
	return team, nil
}

func (m *MemoryTeamStore) SaveTeam(_ context.Context, team Team) error {
	if team.TeamID == "" {
		return fmt.Errorf("team id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teams[team.TeamID] = team
	return nil
}

// S3API is the part of the S3 client the store uses
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3TeamStore implements TeamStore using AWS S3, encrypting tokens at rest
type S3TeamStore struct {
	client     S3API
	bucketName string
	encryptKey []byte // 32-byte key for AES-256
}

type teamData struct {
	TeamID    string `json:"team_id"`
	BotToken  string `json:"bot_token"`
	BotUserID string `json:"bot_user_id,omitempty"`
	BotID     string `json:"bot_id,omitempty"`
}

// NewS3TeamStore creates a new S3TeamStore instance
func NewS3TeamStore(client S3API, bucketName string, encryptKey []byte) (*S3TeamStore, error) {
	if len(encryptKey) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(encryptKey))
	}
	return &S3TeamStore{
		client:     client,
		bucketName: bucketName,
		encryptKey: encryptKey,
	}, nil
}

// GetTeam retrieves the team's installation and decrypts its bot token
func (s *S3TeamStore) GetTeam(ctx context.Context, teamID string) (Team, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.getKey(teamID)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return Team{}, ErrTeamNotFound
		}
		return Team{}, fmt.Errorf("failed to get team from S3: %w", err)
	}
	defer result.Body.Close()

	var data teamData
	if err := json.NewDecoder(result.Body).Decode(&data); err != nil {
		return Team{}, fmt.Errorf("failed to decode team data: %w", err)
	}

	token, err := s.decrypt(data.BotToken)
	if err != nil {
		return Team{}, fmt.Errorf("failed to decrypt team token: %w", err)
	}
	return Team{
		TeamID:    teamID,
		BotToken:  token,
		BotUserID: data.BotUserID,
		BotID:     data.BotID,
	}, nil
}

// SaveTeam encrypts the bot token and stores the team's installation
func (s *S3TeamStore) SaveTeam(ctx context.Context, team Team) error {
	if team.TeamID == "" {
		return fmt.Errorf("team id is required")
	}
	encrypted, err := s.encrypt(team.BotToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt team token: %w", err)
	}

	jsonData, err := json.Marshal(teamData{
		TeamID:    team.TeamID,
		BotToken:  encrypted,
		BotUserID: team.BotUserID,
		BotID:     team.BotID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal team data: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.getKey(team.TeamID)),
		Body:   bytes.NewReader(jsonData),
	})
	if err != nil {
		return fmt.Errorf("failed to store team in S3: %w", err)
	}
	return nil
}

// encrypt seals plaintext with AES-GCM; the nonce is prepended
func (s *S3TeamStore) encrypt(plaintext string) (string, error) {
	aesGCM, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *S3TeamStore) decrypt(encryptedText string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedText)
	if err != nil {
		return "", err
	}

	aesGCM, err := s.gcm()
	if err != nil {
		return "", err
	}

	if len(ciphertext) < aesGCM.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:aesGCM.NonceSize()]
	ciphertext = ciphertext[aesGCM.NonceSize():]

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (s *S3TeamStore) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.encryptKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *S3TeamStore) getKey(teamID string) string {
	return fmt.Sprintf("teams/%s.json", teamID)
}
