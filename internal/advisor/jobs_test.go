package advisor

import (
	"context"
	"testing"

	"skinadvisor/pkg/queue"
)

func TestHandleJobDispatch(t *testing.T) {
	fc := &fakeCompleter{completeText: "Gentle Cleanser Questions Answered"}
	adv, st, _ := newTestAdvisor(t, fc)
	seedExchange(t, st, "conv-1")

	err := adv.HandleJob(context.Background(), queue.Job{Kind: queue.KindTitle, ConversationID: "conv-1"})
	if err != nil {
		t.Fatalf("title job: %v", err)
	}
	conv, _, _ := st.GetConversation("conv-1")
	if conv.Title == "" {
		t.Fatalf("title job did not set a title")
	}

	if err := adv.HandleJob(context.Background(), queue.Job{Kind: "reindex"}); err == nil {
		t.Fatalf("unknown job kind must error")
	}
}
