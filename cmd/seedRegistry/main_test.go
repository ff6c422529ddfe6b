package main

import (
	"strings"
	"testing"
)

func TestParseRulesCSV_SkipsHeader(t *testing.T) {
	input := strings.Join([]string{
		"name,active_ingredient,phi_days,banned,target_market",
		"Cypermethrin 10EC,cypermethrin,14,false,EU",
		"Paraquat,paraquat dichloride,0,true,",
	}, "\n")

	rules, err := parseRulesCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Name != "Cypermethrin 10EC" || rules[0].PHIDays != 14 || rules[0].Banned {
		t.Fatalf("unexpected first rule: %+v", rules[0])
	}
	if !rules[1].Banned {
		t.Fatalf("expected second rule banned, got %+v", rules[1])
	}
	if rules[0].TargetMarket != "EU" {
		t.Fatalf("expected target market EU, got %q", rules[0].TargetMarket)
	}
}

func TestParseRulesCSV_NoHeader(t *testing.T) {
	rules, err := parseRulesCSV(strings.NewReader("Abamectin,abamectin,7\n"))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rules) != 1 || rules[0].PHIDays != 7 {
		t.Fatalf("unexpected rules: %+v", rules)
	}
}

func TestParseRulesCSV_RejectsBadPHI(t *testing.T) {
	if _, err := parseRulesCSV(strings.NewReader("Abamectin,abamectin,soon\n")); err == nil {
		t.Fatalf("expected error for non-numeric phi_days")
	}
}
