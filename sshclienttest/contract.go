package sshclienttest

// AllContracts returns all test cases for the contract test suite.
func AllContracts() []TestCase {
	const initialCapacity = 16

	contracts := make([]TestCase, 0, initialCapacity)

	contracts = append(contracts, coreContracts()...)
	contracts = append(contracts, authContracts()...)
	contracts = append(contracts, sessionContracts()...)
	contracts = append(contracts, errorContracts()...)

	return contracts
}
