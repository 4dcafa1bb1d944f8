package data

import (
	"testing"
	"time"
)

func TestListEntries(t *testing.T) {
	db := setUpDatabase(t)

	const friends, ignored = 1, 2
	for _, e := range []ListEntry{
		{OwnerID: 10, ListType: friends, MemberID: 11, MemberName: "bob", AddedAt: time.Now()},
		{OwnerID: 10, ListType: friends, MemberID: 12, MemberName: "carol", AddedAt: time.Now()},
		{OwnerID: 10, ListType: friends, MemberID: 11, MemberName: "bob", AddedAt: time.Now()},
		{OwnerID: 10, ListType: ignored, MemberID: 13, MemberName: "mallory", AddedAt: time.Now()},
	} {
		e := e
		if err := CreateListEntry(db, &e); err != nil {
			t.Fatalf("CreateListEntry() returned an unexpected error: %v", err)
		}
	}

	entries, err := FindListEntries(db, 10, friends)
	if err != nil {
		t.Fatalf("FindListEntries() returned an unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].MemberName != "bob" || entries[1].MemberName != "carol" {
		t.Fatalf("FindListEntries() got = %+v", entries)
	}
	if n, _ := CountListEntries(db, 10, ignored); n != 1 {
		t.Fatalf("CountListEntries() want = 1, got = %d", n)
	}

	removed, err := DeleteListEntry(db, 10, friends, 11)
	if err != nil || !removed {
		t.Fatalf("DeleteListEntry() removed = %v, error = %v", removed, err)
	}
	removed, err = DeleteListEntry(db, 10, friends, 11)
	if err != nil || removed {
		t.Fatalf("DeleteListEntry() of a missing member removed = %v, error = %v", removed, err)
	}

	if err := ClearListEntries(db, 10, friends); err != nil {
		t.Fatalf("ClearListEntries() returned an unexpected error: %v", err)
	}
	if n, _ := CountListEntries(db, 10, friends); n != 0 {
		t.Fatalf("CountListEntries() after clear want = 0, got = %d", n)
	}
	if n, _ := CountListEntries(db, 10, ignored); n != 1 {
		t.Fatalf("ClearListEntries() touched another list, count = %d", n)
	}
}
