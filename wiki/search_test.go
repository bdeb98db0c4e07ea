package wiki

import (
	"context"
	"net/http"
	"strconv"
	"testing"
)

func allpagesResponse(titles []string, firstID int, continueFrom string) map[string]interface{} {
	pages := make([]interface{}, 0, len(titles))
	for i, title := range titles {
		pages = append(pages, map[string]interface{}{
			"pageid": float64(firstID + i),
			"title":  title,
		})
	}
	resp := map[string]interface{}{
		"query": map[string]interface{}{
			"allpages": pages,
		},
	}
	if continueFrom != "" {
		resp["continue"] = map[string]interface{}{
			"apcontinue": continueFrom,
		}
	}
	return resp
}

func TestListPages_Success(t *testing.T) {
	var gotPrefix, gotLimit string
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPrefix = r.FormValue("apprefix")
		gotLimit = r.FormValue("aplimit")
		writeJSON(w, allpagesResponse([]string{"Team:TestTeam", "Team:TestTeam/index"}, 10, ""))
	})
	defer server.Close()

	client := createMockClient(t, server)
	result, err := client.ListPages(context.Background(), ListPagesArgs{Prefix: "Team:TestTeam"})
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(result.Pages))
	}
	if result.Pages[0].Title != "Team:TestTeam" || result.Pages[0].PageID != 10 {
		t.Errorf("unexpected first page: %+v", result.Pages[0])
	}
	if result.HasMore {
		t.Error("expected no continuation")
	}
	if gotPrefix != "Team:TestTeam" {
		t.Errorf("unexpected apprefix %q", gotPrefix)
	}
	if gotLimit != strconv.Itoa(DefaultPageLimit) {
		t.Errorf("unexpected aplimit %q", gotLimit)
	}
}

func TestListPages_LimitClamped(t *testing.T) {
	var gotLimit string
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.FormValue("aplimit")
		writeJSON(w, allpagesResponse(nil, 0, ""))
	})
	defer server.Close()

	client := createMockClient(t, server)
	_, err := client.ListPages(context.Background(), ListPagesArgs{Prefix: "Team:TestTeam", Limit: 9999})
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if gotLimit != strconv.Itoa(MaxPageLimit) {
		t.Errorf("limit must clamp to %d, got %q", MaxPageLimit, gotLimit)
	}
}

func TestAllPages_FollowsContinuation(t *testing.T) {
	requests := 0
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.FormValue("apcontinue") {
		case "":
			writeJSON(w, allpagesResponse([]string{"Team:TestTeam/a"}, 1, "Team:TestTeam/b"))
		case "Team:TestTeam/b":
			writeJSON(w, allpagesResponse([]string{"Team:TestTeam/b"}, 2, ""))
		default:
			t.Errorf("unexpected apcontinue %q", r.FormValue("apcontinue"))
		}
	})
	defer server.Close()

	client := createMockClient(t, server)
	pages, err := client.AllPages(context.Background(), "Team:TestTeam", 0)
	if err != nil {
		t.Fatalf("AllPages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if requests != 2 {
		t.Errorf("expected 2 listing requests, got %d", requests)
	}
}

func TestAllPages_BoundedWalk(t *testing.T) {
	requests := 0
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		// Endless continuation chain
		writeJSON(w, allpagesResponse([]string{"Team:TestTeam/p" + strconv.Itoa(requests)}, requests, "next"))
	})
	defer server.Close()

	client := createMockClient(t, server)
	pages, err := client.AllPages(context.Background(), "Team:TestTeam", 3)
	if err != nil {
		t.Fatalf("AllPages failed: %v", err)
	}
	if requests != 3 {
		t.Errorf("expected the walk to stop at 3 requests, got %d", requests)
	}
	if len(pages) != 3 {
		t.Errorf("expected 3 pages collected before the bound, got %d", len(pages))
	}
}

func TestListPages_DryRun(t *testing.T) {
	client := NewClient(&Config{Year: 2024, Team: "Team:TestTeam", DryRun: true}, testLogger())

	result, err := client.ListPages(context.Background(), ListPagesArgs{Prefix: "Team:TestTeam"})
	if err != nil {
		t.Fatalf("dry-run listing failed: %v", err)
	}
	if len(result.Pages) != 0 || result.HasMore {
		t.Errorf("dry-run listing must be empty, got %+v", result)
	}
}
