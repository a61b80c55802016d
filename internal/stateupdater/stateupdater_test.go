package stateupdater

import (
	"testing"

	"github.com/liveink/liveink/internal/statestore"
)

func TestParseTodoOperations_PlainJSON(t *testing.T) {
	ops, err := parseTodoOperations(`{"operations": [{"action": "add", "desc": "write chapter 2"}]}`)
	if err != nil {
		t.Fatalf("parseTodoOperations: %v", err)
	}
	if len(ops) != 1 || ops[0].Action != "add" || ops[0].Desc != "write chapter 2" {
		t.Errorf("ops = %+v", ops)
	}
}

func TestParseTodoOperations_MarkdownFenced(t *testing.T) {
	ops, err := parseTodoOperations("```json\n{\"operations\": []}\n```")
	if err != nil {
		t.Fatalf("parseTodoOperations: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("ops = %+v, want empty", ops)
	}
}

func TestParseTodoOperations_Garbage(t *testing.T) {
	if _, err := parseTodoOperations("not json at all"); err == nil {
		t.Error("expected error for unparseable response")
	}
}

func TestParseTodoOperations_Empty(t *testing.T) {
	ops, err := parseTodoOperations("   ")
	if err != nil {
		t.Fatalf("parseTodoOperations: %v", err)
	}
	if ops != nil {
		t.Errorf("ops = %+v, want nil", ops)
	}
}

func TestApplyTodoOperations_CompleteRemovesItem(t *testing.T) {
	todos := []statestore.Todo{{ID: "a", Description: "one"}, {ID: "b", Description: "two"}}
	ops := []rawTodoOperation{{Action: "complete", TodoID: "a"}}
	result := applyTodoOperations(todos, ops)
	if len(result) != 1 || result[0].ID != "b" {
		t.Errorf("result = %+v, want only b remaining", result)
	}
}

func TestApplyTodoOperations_Update(t *testing.T) {
	todos := []statestore.Todo{{ID: "a", Description: "old"}}
	ops := []rawTodoOperation{{Action: "update", TodoID: "a", NewDesc: "new"}}
	result := applyTodoOperations(todos, ops)
	if len(result) != 1 || result[0].Description != "new" {
		t.Errorf("result = %+v", result)
	}
}

func TestApplyTodoOperations_Delete(t *testing.T) {
	todos := []statestore.Todo{{ID: "a", Description: "one"}, {ID: "b", Description: "two"}}
	ops := []rawTodoOperation{{Action: "delete", TodoID: "b"}}
	result := applyTodoOperations(todos, ops)
	if len(result) != 1 || result[0].ID != "a" {
		t.Errorf("result = %+v", result)
	}
}

func TestApplyTodoOperations_Add(t *testing.T) {
	result := applyTodoOperations(nil, []rawTodoOperation{{Action: "add", Desc: "new item"}})
	if len(result) != 1 || result[0].Description != "new item" || result[0].ID == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestApplyTodoOperations_UnknownActionIsIgnored(t *testing.T) {
	todos := []statestore.Todo{{ID: "a", Description: "one"}}
	result := applyTodoOperations(todos, []rawTodoOperation{{Action: "frob", TodoID: "a"}})
	if len(result) != 1 || result[0].Description != "one" {
		t.Errorf("result = %+v, want unchanged", result)
	}
}
