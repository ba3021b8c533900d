// Package inmemdb implements the core repositories in memory. It backs
// the test suites and local development without a running PostgreSQL.
package inmemdb

import (
	"sync"

	"github.com/kazihub/kazi/core/automation"
	"github.com/kazihub/kazi/core/chat"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/presence"
	"github.com/kazihub/kazi/core/syncq"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
)

type (
	DB struct {
		user         *userTable
		task         *taskTable
		room         *roomTable
		message      *messageTable
		notification *notificationTable
		presence     *presenceTable
		rule         *ruleTable
		appliedOp    *appliedOpTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	taskTable struct {
		sync.RWMutex
		table map[string]*task.Task
	}

	roomTable struct {
		sync.RWMutex
		table map[string]*chat.Room
	}

	messageTable struct {
		sync.RWMutex
		table map[string]*chat.Message
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Urgent
	}

	presenceTable struct {
		sync.RWMutex
		table map[string]*presence.Presence
	}

	ruleTable struct {
		sync.RWMutex
		table map[string]*automation.Rule
	}

	appliedOpTable struct {
		sync.RWMutex
		table map[string]*syncq.AppliedOp // keyed by userID+"/"+clientRef
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		task:         &taskTable{table: make(map[string]*task.Task)},
		room:         &roomTable{table: make(map[string]*chat.Room)},
		message:      &messageTable{table: make(map[string]*chat.Message)},
		notification: &notificationTable{table: make(map[string]*notification.Urgent)},
		presence:     &presenceTable{table: make(map[string]*presence.Presence)},
		rule:         &ruleTable{table: make(map[string]*automation.Rule)},
		appliedOp:    &appliedOpTable{table: make(map[string]*syncq.AppliedOp)},
	}
	return db, nil
}
