package internal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKeyValid(t *testing.T) {
	valid := []string{
		"foo",
		"foo/bar",
		"thought.1",
		"my-key",
		"my_key",
		"A1",
		"0f8fad5b-d9cb-469f-a165-70867728950e",
	}

	for _, s := range valid {
		if err := ValidateKey(s); err != nil {
			t.Errorf("ValidateKey(%q) returned error: %v", s, err)
		}
	}
}

func TestValidateKeyInvalid(t *testing.T) {
	invalid := []string{
		"",
		"-start-with-dash",
		".hidden",
		"/abs",
		"has spaces",
		"has\nnewline",
		"special!char",
		"a/../../etc",
	}

	for _, s := range invalid {
		if err := ValidateKey(s); err != ErrInvalidKey {
			t.Errorf("ValidateKey(%q) expected ErrInvalidKey, got %v", s, err)
		}
	}
}

func TestNewTaskResultCarriesTaskID(t *testing.T) {
	task := NewTask("summarize the day")
	res := NewTaskResult(task, "done")

	assert.Equal(t, KindTaskResult, res.Kind)
	assert.Equal(t, task.ID, res.TaskID)
	assert.NotEmpty(t, res.ID)
	assert.NotEqual(t, task.ID, res.ID)
}

func TestStorageErrorUnwrap(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("store: %w", &StorageError{Op: "write", Key: "k", Err: base})

	assert.ErrorIs(t, err, base)

	var se *StorageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "k", se.Key)
}
