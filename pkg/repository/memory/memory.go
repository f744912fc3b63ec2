package memory

import (
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is an in-memory repository for development and testing
type Memory struct {
	stream       *streamRepository
	message      *messageRepository
	conversation *conversationRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		stream:       newStreamRepository(),
		message:      newMessageRepository(),
		conversation: newConversationRepository(),
	}
}

func (m *Memory) Stream() interfaces.StreamRepository {
	return m.stream
}

func (m *Memory) Message() interfaces.MessageRepository {
	return m.message
}

func (m *Memory) Conversation() interfaces.ConversationRepository {
	return m.conversation
}

func (m *Memory) Close() error {
	return nil
}
