package service

import (
	"strings"

	"traderlaunchpad/internal/client/tradelocker"
)

// resolveAccount re-derives the canonical (accountId, accNum) pair from the
// live accounts listing each run rather than trusting stored values, since
// some endpoints want the id where others want the number and provider-side
// account changes can stale the stored mapping. A freshly connected row has
// nothing stored yet, so empty stored values take the first listed account.
// No match falls back to the stored values as-is.
func resolveAccount(accounts []map[string]any, storedAccountID, storedAccNum string) (string, string) {
	storedAccountID = strings.TrimSpace(storedAccountID)
	storedAccNum = strings.TrimSpace(storedAccNum)
	storedNum, storedNumOK := tradelocker.NumberLike(storedAccNum)

	idKeys := []string{"accountId", "id", "_id"}
	numKeys := []string{"accNum", "acc_num", "accountNumber"}

	if storedAccountID == "" && storedAccNum == "" {
		for _, account := range accounts {
			id := tradelocker.FirstString(account, idKeys...)
			num := tradelocker.FirstString(account, numKeys...)
			if id != "" || num != "" {
				return id, num
			}
		}
		return "", ""
	}

	for _, account := range accounts {
		id := tradelocker.FirstString(account, idKeys...)
		num := tradelocker.FirstString(account, numKeys...)
		matched := false
		if storedAccountID != "" && (id == storedAccountID || num == storedAccountID) {
			matched = true
		}
		if !matched && storedNumOK {
			if n, ok := tradelocker.NumberLike(num); ok && n == storedNum {
				matched = true
			}
			if !matched {
				if n, ok := tradelocker.NumberLike(id); ok && n == storedNum {
					matched = true
				}
			}
		}
		if !matched {
			continue
		}
		resolvedID, resolvedNum := id, num
		if resolvedID == "" {
			resolvedID = storedAccountID
		}
		if resolvedNum == "" {
			resolvedNum = storedAccNum
		}
		return resolvedID, resolvedNum
	}
	return storedAccountID, storedAccNum
}
