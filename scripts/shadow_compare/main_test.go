package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapEnvelope(t *testing.T) {
	assert.JSONEq(t, `[{"id":"a"}]`, string(unwrapEnvelope([]byte(`{"data":[{"id":"a"}],"meta":{"count":1}}`))))
	assert.Equal(t, `[1,2]`, string(unwrapEnvelope([]byte(`[1,2]`))))
}

func TestBodiesEqualIgnoresListedKeys(t *testing.T) {
	goBody := []byte(`[{"id":"a","likes":2,"author":{"name":"Ana"}}]`)
	legacy := []byte(`[{"id":"a","likes":2.0}]`)
	assert.True(t, bodiesEqual(goBody, legacy, []string{"author"}))
	assert.False(t, bodiesEqual(goBody, legacy, nil))
	assert.False(t, bodiesEqual([]byte(`{"id":"a"}`), []byte(`not json`), nil))
}
